package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/freekieb7/mudpie/http"
	"github.com/freekieb7/mudpie/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const name = "github.com/freekieb7/mudpie/cmd/mudpie-demo"

var (
	addr      = flag.String("addr", "127.0.0.1:8000", "address to listen on")
	workers   = flag.Int("workers", http.DefaultNumWorkers, "number of worker goroutines")
	maxBody   = flag.Uint64("max-body", http.DefaultMaxRequestBodySize, "maximum request body size in bytes")
	reusePort = flag.Bool("reuseport", false, "bind with SO_REUSEPORT")
	otlp      = flag.Bool("otlp", false, "export traces, metrics and logs over OTLP/gRPC (see OTEL_* env)")
	useZero   = flag.Bool("zerolog", false, "log requests with zerolog instead of slog")
)

func main() {
	flag.Parse()
	if err := run(context.Background()); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	slogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *otlp {
		shutdown, err := telemetry.Setup(ctx, telemetry.Config{})
		if err != nil {
			return fmt.Errorf("setting up telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slogger.Error("telemetry shutdown failed", "error", err)
			}
		}()
		slogger = telemetry.Logger(name)
	}

	d, err := newDemo()
	if err != nil {
		return err
	}

	server := http.NewServer("mudpie-demo")
	server.SetNumWorkers(*workers)
	server.SetMaxRequestBodySize(*maxBody)
	server.SetReusePort(*reusePort)
	if *useZero {
		server.SetLogger(http.ZerologLogger{Logger: zerolog.New(os.Stderr).With().Timestamp().Logger()})
	} else {
		server.SetLogger(http.NewSlogLogger(slogger))
	}

	server.AddPath("get", "/", http.HandlerFunc(indexPage))
	hello := http.Chain(http.HandlerFunc(helloPage),
		http.RequestIDMiddleware(),
		http.HeaderMiddleware("X-Frame-Options", "DENY"),
	)
	server.AddPath("get,head", "/hello", hello)
	server.AddPathPrefix("get,head", "/hello/", hello)
	server.AddPath("get", "/panic", http.HandlerFunc(panicPage))
	server.AddPath("get", "/form_enter", http.HandlerFunc(formEnterPage))
	server.AddPath("post", "/form_post", http.HandlerFunc(formPostPage))
	server.GET("/roll", d.rollPage)

	serverErrCh := make(chan error, 1)
	go func() {
		slogger.Info("listening", "addr", *addr, "workers", *workers)
		serverErrCh <- server.ListenAndServe(*addr)
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-ctx.Done():
		stop()
	}

	server.Close()
	if err := <-serverErrCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func toHTML(body string) string {
	return "<html><body>" + body + "</body></html>"
}

func indexPage(_ *http.Request) *http.Response {
	var page strings.Builder
	page.WriteString("<h1>Available Resources</h1>")
	page.WriteString("<ul>")
	page.WriteString(`<li><a href="/hello?foo=bar">/hello</a> Shows Request Headers`)
	page.WriteString(`<li><a href="/panic">/panic</a> Simulates a crash`)
	page.WriteString(`<li><a href="/form_enter">/form_enter</a> Form Submission Example`)
	page.WriteString(`<li><a href="/form_post">/form_post</a> Only allows POST`)
	page.WriteString(`<li><a href="/roll">/roll</a> Rolls a die`)
	page.WriteString("</ul>")
	return http.NewHTMLResponse(toHTML(page.String()))
}

func helloPage(req *http.Request) *http.Response {
	var page strings.Builder
	page.WriteString("<h1>Hello World!</h1>")
	page.WriteString("<p>Unicode text: ΦΩ€₪</p>")
	page.WriteString("<pre>")
	page.WriteString("Request Environment:\n\n")
	for _, key := range req.EnvKeys() {
		value, _ := req.Env(key)
		fmt.Fprintf(&page, "%s = %s\n", http.EscapeHTML(key), http.EscapeHTML(string(value)))
	}
	fmt.Fprintf(&page, "\ndecoded path = %s\n", http.EscapeHTML(req.Path()))
	page.WriteString("</pre>")

	return http.NewHTMLResponse(toHTML(page.String())).
		WithHeader("X-Mudpie-Example-Header", "fi fi fo fum")
}

// panicPage is answered with a 500 by the server.
func panicPage(_ *http.Request) *http.Response {
	panic("I can't go on!")
}

func formEnterPage(_ *http.Request) *http.Response {
	var page strings.Builder
	page.WriteString("<h1>Form Example</h1>")
	page.WriteString(`<form action="/form_post" method="post">`)
	page.WriteString(`Name: <input type="text" name="test">`)
	page.WriteString(`<input type="submit" value="Submit">`)
	page.WriteString("</form>")
	return http.NewHTMLResponse(toHTML(page.String()))
}

func formPostPage(req *http.Request) *http.Response {
	var page strings.Builder
	page.WriteString("<h1>Form Posted</h1>")
	fmt.Fprintf(&page, "<pre>%s</pre>", http.EscapeHTML(string(req.Body())))
	return http.NewHTMLResponse(toHTML(page.String()))
}

type demo struct {
	rollCnt metric.Int64Counter
}

func newDemo() (*demo, error) {
	rollCnt, err := otel.Meter(name).Int64Counter("dice.rolls",
		metric.WithDescription("The number of rolls by roll value"),
		metric.WithUnit("{roll}"))
	if err != nil {
		return nil, err
	}
	return &demo{rollCnt: rollCnt}, nil
}

func (d *demo) rollPage(req *http.Request) *http.Response {
	ctx, span := otel.Tracer(name).Start(req.Context(), "roll")
	defer span.End()

	roll := 1 + rand.Intn(6)

	rollValueAttr := attribute.Int("roll.value", roll)
	span.SetAttributes(rollValueAttr)
	d.rollCnt.Add(ctx, 1, metric.WithAttributes(rollValueAttr))

	return http.NewResponse().WithText(strconv.Itoa(roll) + "\n")
}
