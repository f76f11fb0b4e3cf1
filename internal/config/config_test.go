/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "alertpipe-config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when the file has full content", func() {
			BeforeEach(func() {
				full := `
server:
  http_port: "8081"
  metrics_port: "9091"

stages:
  default_max_retries: 5
  default_run_timeout: 600s
  check_concurrency: 4

storage:
  dsn: "postgres://localhost/alertpipe"

redis:
  addr: "localhost:6380"

logging:
  level: "debug"
  format: "console"
`
				Expect(os.WriteFile(configFile, []byte(full), 0644)).To(Succeed())
			})

			It("loads every field", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.HTTPPort).To(Equal("8081"))
				Expect(cfg.Stages.DefaultMaxRetries).To(Equal(5))
				Expect(cfg.Stages.DefaultRunTimeout).To(Equal(600 * time.Second))
				Expect(cfg.Storage.DSN).To(Equal("postgres://localhost/alertpipe"))
				Expect(cfg.Redis.Addr).To(Equal("localhost:6380"))
				Expect(cfg.Logging.Level).To(Equal("debug"))
			})
		})

		Context("when the file has minimal content", func() {
			BeforeEach(func() {
				minimal := `
storage:
  dsn: "postgres://localhost/alertpipe"
`
				Expect(os.WriteFile(configFile, []byte(minimal), 0644)).To(Succeed())
			})

			It("fills in defaults", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.HTTPPort).To(Equal("8080"))
				Expect(cfg.Stages.DefaultMaxRetries).To(Equal(3))
				Expect(cfg.Stages.CheckConcurrency).To(Equal(8))
			})
		})

		Context("when the file does not exist", func() {
			It("returns an error", func() {
				_, err := Load(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when the YAML is malformed", func() {
			It("returns a parse error", func() {
				Expect(os.WriteFile(configFile, []byte("server: [this is not valid"), 0644)).To(Succeed())
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})
	})

	Describe("Watcher", func() {
		It("reloads when the file changes", func() {
			Expect(os.WriteFile(configFile, []byte("logging:\n  level: \"info\"\n"), 0644)).To(Succeed())

			reloaded := make(chan *Config, 4)
			w, err := NewWatcher(configFile, func(c *Config) { reloaded <- c })
			Expect(err).NotTo(HaveOccurred())
			defer w.Close()

			Expect(w.Current().Logging.Level).To(Equal("info"))

			Expect(os.WriteFile(configFile, []byte("logging:\n  level: \"debug\"\n"), 0644)).To(Succeed())

			Eventually(func() string {
				return w.Current().Logging.Level
			}, 2*time.Second, 10*time.Millisecond).Should(Equal("debug"))
		})
	})
})
