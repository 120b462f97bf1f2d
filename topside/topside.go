package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"path"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/Hy8012/tirslk-maze-1-00-00/internal/logger"
)

//RobotStatus is the status pushed by the bottom side
type RobotStatus struct {
	RunID       string `json:"runId"`
	Phase       string `json:"phase"`
	State       string `json:"state"`
	Left        uint16 `json:"left"`
	Right       uint16 `json:"right"`
	LED1        uint8  `json:"led1"`
	LED2        uint8  `json:"led2"`
	Input       uint8  `json:"input"`
	Sample      uint8  `json:"sample"`
	Elapsed     uint32 `json:"elapsed"`
	UpdateCount uint64 `json:"updateCount"`
	Transitions uint64 `json:"transitions"`
	Halted      bool   `json:"halted"`
}

//ButtonMessage presses or releases the remote start button
type ButtonMessage struct {
	Button string `json:"button"`
}

//controlURL turns the bottom side base URL into its control socket URL
func controlURL(bottom string) (string, error) {
	u, err := url.Parse(bottom)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = path.Join(u.Path, "/control")
	return u.String(), nil
}

//stripPrefix maps a proxied console path onto the bottom side
func stripPrefix(p, prefix string) string {
	rest := strings.TrimPrefix(p, prefix)
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return rest
}

func dial(ctx context.Context, bottom string) (*websocket.Conn, error) {
	u, err := controlURL(bottom)
	if err != nil {
		return nil, err
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: %w (status %s)", u, err, resp.Status)
		}
		return nil, fmt.Errorf("dialing %s: %w", u, err)
	}
	return ws, nil
}

//pressStart taps the remote start button, holding it for hold
func pressStart(ctx context.Context, ws *websocket.Conn, hold time.Duration) error {
	if err := ws.WriteJSON(ButtonMessage{Button: "press"}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(hold):
	}
	return ws.WriteJSON(ButtonMessage{Button: "release"})
}

//watch logs every status change until the socket closes or the robot halts
func watch(ctx context.Context, ws *websocket.Conn, log *zap.Logger) (RobotStatus, error) {
	go func() {
		<-ctx.Done()
		ws.Close()
	}()
	var last RobotStatus
	for {
		var st RobotStatus
		if err := ws.ReadJSON(&st); err != nil {
			if ctx.Err() != nil {
				return last, nil
			}
			return last, err
		}
		if st.State != last.State || st.Phase != last.Phase {
			log.Info("robot",
				zap.String("phase", st.Phase),
				zap.String("state", st.State),
				zap.Uint16("left", st.Left),
				zap.Uint16("right", st.Right),
				zap.Uint64("transitions", st.Transitions))
		}
		last = st
		if st.Halted {
			return last, nil
		}
	}
}

func newLogger(c *cli.Context) *zap.Logger {
	return logger.New(c.GlobalString("log-level"), logger.Format(c.GlobalString("log-format"))).
		Named(logger.ComponentTopside)
}

func main() {
	app := cli.NewApp()
	app.Name = "topside"
	app.Usage = "operator console for the line following robot"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "bottomurl",
			Value:  "http://localhost:8080",
			Usage:  "bottom side URL",
			EnvVar: "LINEBOT_BOTTOM_URL",
		},
		cli.StringFlag{
			Name:   "static",
			Usage:  "path to static files",
			EnvVar: "LINEBOT_STATIC",
		},
		cli.StringFlag{
			Name:   "http",
			Value:  ":8001",
			Usage:  "console listening address",
			EnvVar: "LINEBOT_CONSOLE_HTTP",
		},
		cli.StringFlag{
			Name:   "log-level",
			Value:  "info",
			EnvVar: "LINEBOT_LOG_LEVEL",
		},
		cli.StringFlag{
			Name:   "log-format",
			Value:  string(logger.FormatConsole),
			EnvVar: "LINEBOT_LOG_FORMAT",
		},
	}
	app.Action = serve
	app.Commands = []cli.Command{
		{
			Name:  "start",
			Usage: "press and release the remote start button, then watch the run",
			Flags: []cli.Flag{
				cli.DurationFlag{
					Name:  "hold",
					Value: 200 * time.Millisecond,
					Usage: "how long to hold the button",
				},
			},
			Action: func(c *cli.Context) error {
				log := newLogger(c)
				defer log.Sync()
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
				defer stop()
				ws, err := dial(ctx, c.GlobalString("bottomurl"))
				if err != nil {
					return err
				}
				defer ws.Close()
				if err := pressStart(ctx, ws, c.Duration("hold")); err != nil {
					return err
				}
				log.Info("start button pressed")
				st, err := watch(ctx, ws, log)
				log.Info("run over", zap.String("state", st.State), zap.Uint64("transitions", st.Transitions))
				return err
			},
		},
		{
			Name:  "watch",
			Usage: "log robot status changes",
			Action: func(c *cli.Context) error {
				log := newLogger(c)
				defer log.Sync()
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
				defer stop()
				ws, err := dial(ctx, c.GlobalString("bottomurl"))
				if err != nil {
					return err
				}
				defer ws.Close()
				_, err = watch(ctx, ws, log)
				return err
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	log := newLogger(c)
	defer log.Sync()
	log.Info("serving console", zap.String("static", c.GlobalString("static")))
	mux := http.NewServeMux()
	//set default router to static files
	mux.Handle("/", http.FileServer(http.Dir(c.GlobalString("static"))))
	//set up reverse proxy to bottom side
	burl, err := url.Parse(c.GlobalString("bottomurl"))
	if err != nil {
		return err
	}
	rp := httputil.NewSingleHostReverseProxy(burl)
	mux.HandleFunc("/bs/", func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = stripPrefix(r.URL.Path, "/bs")
		rp.ServeHTTP(w, r)
	})
	return http.ListenAndServe(c.GlobalString("http"), mux)
}
