package main

import (
	"log"
	"net/http"
	"time"

	"github.com/grvbrk/vidmetrics_server/internal/app"
	"github.com/grvbrk/vidmetrics_server/internal/routes"
	"github.com/joho/godotenv"
)

const (
	PORT string = ":8080"
)

func main() {

	// .env is optional; in production everything comes from the environment.
	_ = godotenv.Load()

	app, err := app.NewApplication()
	if err != nil {
		log.Fatal("Failed to start application:", err)
	}

	r := routes.SetupRoutes(app)

	server := &http.Server{
		Addr:         PORT,
		Handler:      r,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	app.Logger.Println("Server started on port", PORT)

	err = server.ListenAndServe()
	if err != nil {
		app.Logger.Fatal("Error starting server", err)
	}

}
