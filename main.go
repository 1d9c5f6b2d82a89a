package main

import (
	"flag"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"codesync-server/core"
	"codesync-server/handlers/api/assistant"
	"codesync-server/handlers/api/execute"
	roomsapi "codesync-server/handlers/api/rooms"
	"codesync-server/handlers/websocket"
	"codesync-server/stores"
)

func setupRouter(engine roomsapi.RoomEngine, store core.RoomStore) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "" {
				return false
			}
			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}
			switch parsed.Hostname() {
			case "localhost", "127.0.0.1", "[::1]":
				return true
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/run", execute.HandleRun())
	r.Post("/chat", assistant.HandleChat())

	r.Route("/api/rooms", func(r chi.Router) {
		r.Get("/", roomsapi.HandleList(engine, store))
		r.Route("/{roomId}", func(r chi.Router) {
			r.Post("/save", roomsapi.HandleSave(engine))
			r.Get("/snapshot", roomsapi.HandleGetSnapshot(store))
			r.Delete("/", roomsapi.HandleDelete(store))
		})
	})

	return r
}

func waitForShutdown(ioo *socketio.Server) {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range signalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	ioo.Close(nil)
	os.Exit(0)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddr := flag.String("listen", ":5000", "Set the server listen address")
	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	execute.Init()
	assistant.Init()
	store := stores.GetStore()

	ioo, registry := websocket.SetupSocketIO(store)

	r := setupRouter(registry, store)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddr, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo)
}
