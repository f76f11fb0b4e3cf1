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

package checkers

import (
	"context"
	"fmt"
	"os"

	"github.com/jordigilh/alertpipe/pkg/types"
)

// Process reports whether a PID (read from PIDFile) is alive. A CRITICAL
// result means the process is expected to be running but is not found.
type Process struct {
	ProcessName string
	PIDFile     string
}

func NewProcess(name, pidFile string) *Process {
	return &Process{ProcessName: name, PIDFile: pidFile}
}

func (p *Process) Name() string { return "process" }

func (p *Process) Check(ctx context.Context, hostname string) types.CheckResult {
	raw, err := os.ReadFile(p.PIDFile)
	if err != nil {
		return types.CheckResult{
			CheckerName: p.Name(),
			Hostname:    hostname,
			Status:      types.CheckUnknown,
			Error:       err.Error(),
		}
	}

	var pid int
	if _, err := fmt.Sscanf(string(raw), "%d", &pid); err != nil {
		return types.CheckResult{
			CheckerName: p.Name(),
			Hostname:    hostname,
			Status:      types.CheckUnknown,
			Error:       "malformed pid file",
		}
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return types.CheckResult{
			CheckerName: p.Name(),
			Hostname:    hostname,
			Status:      types.CheckCritical,
			Message:     fmt.Sprintf("%s (pid %d) not running", p.ProcessName, pid),
		}
	}
	// On Unix, signal 0 probes liveness without actually signaling the process.
	if err := proc.Signal(processProbeSignal); err != nil {
		return types.CheckResult{
			CheckerName: p.Name(),
			Hostname:    hostname,
			Status:      types.CheckCritical,
			Message:     fmt.Sprintf("%s (pid %d) not running", p.ProcessName, pid),
			Metrics:     map[string]interface{}{"pid": pid},
		}
	}

	return types.CheckResult{
		CheckerName: p.Name(),
		Hostname:    hostname,
		Status:      types.CheckOK,
		Message:     fmt.Sprintf("%s (pid %d) running", p.ProcessName, pid),
		Metrics:     map[string]interface{}{"pid": pid},
	}
}
