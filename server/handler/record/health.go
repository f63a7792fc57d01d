package record

import (
	"runtime"
	"time"

	"Reel/config"
	"Reel/service/recorder/encoder"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health reports host vitals plus the negotiable encoder set so the UI
// can warn before a session starts on a starved machine.
func (s *Service) Health(ctx *gin.Context) {
	payload := gin.H{
		`device`:   config.DeviceID(),
		`commit`:   config.Commit,
		`os`:       runtime.GOOS,
		`arch`:     runtime.GOARCH,
		`encoders`: encoder.Instance().Capabilities(),
		`state`:    s.Session().State().String(),
	}
	if usage, err := cpu.Percent(time.Millisecond*200, false); err == nil && len(usage) > 0 {
		payload[`cpuPercent`] = usage[0]
	}
	if vm, err := mem.VirtualMemory(); err != nil {
		logger.Debugf(`memory stats unavailable: %v`, err)
	} else {
		payload[`memUsedPercent`] = vm.UsedPercent
		payload[`memTotal`] = vm.Total
	}
	ok(ctx, payload)
}
