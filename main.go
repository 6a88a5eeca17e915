package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kettle-http/kettle/http"
	"github.com/kettle-http/kettle/telemetry"
)

const name = "github.com/kettle-http/kettle"

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	otelShutdown, err := telemetry.Setup(ctx, "kettle-demo")
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	logger := telemetry.NewLogger(name)
	tracer := otel.Tracer(name)
	meter := otel.Meter(name)

	requestCnt, err := meter.Int64Counter("kettle.requests",
		metric.WithDescription("The number of requests served by route"),
		metric.WithUnit("{request}"))
	if err != nil {
		return err
	}

	app := http.NewApp(http.WithLogger(logger))

	app.Get("/", http.HandlerFunc(func(req *http.Request, res *http.Response) {
		res.SendFile("public/index.html")
	}))

	app.Get("/hello", http.HandlerFunc(func(req *http.Request, res *http.Response) {
		_, span := tracer.Start(context.Background(), "hello")
		defer span.End()

		logger.Info("handling hello request", "remote_host", req.Host)
		requestCnt.Add(context.Background(), 1, metric.WithAttributes(attribute.String("route", "/hello")))

		res.Send("Hello, World!")
	}))

	app.Get("/goodbye", http.HandlerFunc(func(req *http.Request, res *http.Response) {
		res.Send("Goodbye, World!")
	}))

	app.Get("/json", http.HandlerFunc(func(req *http.Request, res *http.Response) {
		res.Json(`{"message":"Hello, World!"}`)
	}))

	app.Get("/greet", http.HandlerFunc(func(req *http.Request, res *http.Response) {
		who := req.QueryParam("name")
		if who == "" {
			who = "stranger"
		}
		res.Send("Hello, " + who + "!")
	}))

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- app.Listen(8080, func() {
			logger.Info("server started", "port", 8080)
		})
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-ctx.Done():
		stop()
	}

	app.Stop()
	return <-serverErrCh
}
