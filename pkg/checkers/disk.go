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

//go:build linux

package checkers

import (
	"context"
	"fmt"
	"syscall"

	"github.com/jordigilh/alertpipe/pkg/types"
)

// Disk reports the used-space percentage on Path, crossing WarnPct/CritPct thresholds.
type Disk struct {
	Path    string
	WarnPct float64
	CritPct float64
}

func NewDisk(path string, warnPct, critPct float64) *Disk {
	return &Disk{Path: path, WarnPct: warnPct, CritPct: critPct}
}

func (d *Disk) Name() string { return "disk" }

func (d *Disk) Check(ctx context.Context, hostname string) types.CheckResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(d.Path, &stat); err != nil {
		return types.CheckResult{CheckerName: d.Name(), Hostname: hostname, Status: types.CheckUnknown, Error: err.Error()}
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	usedPct := 0.0
	if total > 0 {
		usedPct = 100 * (1 - float64(free)/float64(total))
	}

	status := types.CheckOK
	switch {
	case usedPct >= d.CritPct:
		status = types.CheckCritical
	case usedPct >= d.WarnPct:
		status = types.CheckWarning
	}

	return types.CheckResult{
		CheckerName: d.Name(),
		Hostname:    hostname,
		Status:      status,
		Message:     fmt.Sprintf("%s: %.1f%% used", d.Path, usedPct),
		Metrics: map[string]interface{}{
			"used_pct":    usedPct,
			"total_bytes": total,
			"free_bytes":  free,
		},
	}
}
