package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"asistencia_backend/config"
	"asistencia_backend/database"
	"asistencia_backend/notifier"
	"asistencia_backend/routes"
	"asistencia_backend/services"
)

func main() {
	cfg := config.Load()

	// DB down on boot kills the process.
	db := database.Connect(cfg)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	// Transport is an external capability; the log transport stands in until
	// a real provider is configured.
	engine := routes.Register(e, db, cfg, notifier.LogTransport{})

	services.StartSweepScheduler(context.Background(), db, engine.Sweep)

	addr := ":" + cfg.AppPort
	log.Printf("server listening at %s", addr)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
