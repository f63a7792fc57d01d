// Package server wires the recording control API onto a local HTTP
// listener. The surface is loopback-only by default; it exists for the
// editor UI, not for remote callers.
package server

import (
	"fmt"
	"net/http"
	"time"

	"Reel/config"
	"Reel/server/handler/record"
	"Reel/service/source"

	"github.com/gin-gonic/gin"
	"github.com/kataras/golog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var logger = golog.Child("[server]")

// New builds the engine with every route bound to one record service.
func New(cfg *config.Config, provider source.Provider) (*gin.Engine, *record.Service) {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	service := record.NewService(cfg, provider)

	api := engine.Group(`/api`)
	{
		api.GET(`/health`, service.Health)
		api.GET(`/record/status`, service.Status)
		api.GET(`/record/artifact`, service.Artifact)
		api.GET(`/record/salvage`, service.Salvage)
		api.GET(`/record/capabilities`, service.Capabilities)
		api.POST(`/record/source`, service.RequestSource)
		api.POST(`/record/start`, service.Start)
		api.POST(`/record/pause`, service.Pause)
		api.POST(`/record/resume`, service.Resume)
		api.POST(`/record/stop`, service.Stop)
		api.POST(`/record/reset`, service.Reset)
		api.POST(`/record/volume`, service.Volume)

		api.POST(`/record/region`, service.RegionOpen)
		api.POST(`/record/region/drag`, service.RegionDrag)
		api.POST(`/record/region/set`, service.RegionSet)
		api.POST(`/record/region/full`, service.RegionFullFrame)
		api.GET(`/record/region/confirm`, service.RegionConfirm)
	}
	engine.GET(`/ws/status`, service.StatusStream)
	return engine, service
}

// healthInterval paces the background vitals log.
const healthInterval = time.Minute

// healthWatch periodically logs session state and process vitals so a
// stuck recording is visible in the daemon log.
func healthWatch(service *record.Service) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for range ticker.C {
		status := service.Session().Status()
		line := fmt.Sprintf(`state=%s elapsed=%.1fs`, status.State, status.ElapsedSeconds)
		if usage, err := cpu.Percent(0, false); err == nil && len(usage) > 0 {
			line += fmt.Sprintf(` cpu=%.1f%%`, usage[0])
		}
		if vm, err := mem.VirtualMemory(); err == nil {
			line += fmt.Sprintf(` mem=%.1f%%`, vm.UsedPercent)
		}
		logger.Info(line)
	}
}

// Run blocks serving the control API.
func Run(cfg *config.Config, provider source.Provider) error {
	engine, service := New(cfg, provider)
	go healthWatch(service)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // artifact downloads can be large
	}
	logger.Infof(`control api listening on %s`, cfg.Server.Addr)
	return srv.ListenAndServe()
}
