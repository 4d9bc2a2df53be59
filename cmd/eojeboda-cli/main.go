// Command eojeboda-cli queries an eojeboda server from the terminal.
//
//	eojeboda-cli [-server URL] [-lat N -lon N] compare
//	eojeboda-cli [-lat N -lon N] hour 07
//	eojeboda-cli -uid ID -token T -tz Asia/Seoul -at 07:30 register
//	eojeboda-cli -uid ID unregister
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/i474232898/eojeboda/internal/client"
	"github.com/i474232898/eojeboda/internal/common"
	"github.com/i474232898/eojeboda/internal/notify"
	"github.com/i474232898/eojeboda/internal/weather"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("eojeboda-cli", flag.ContinueOnError)
	server := fs.String("server", envOr("EOJEBODA_URL", "http://localhost:8080"), "server base URL")
	lat := fs.Float64("lat", 37.5665, "latitude")
	lon := fs.Float64("lon", 126.978, "longitude")
	uid := fs.String("uid", "", "device uid (register, unregister)")
	token := fs.String("token", "", "push token (register)")
	tz := fs.String("tz", "Asia/Seoul", "IANA timezone (register)")
	at := fs.String("at", "07:00", "reminder time HH:MM (register)")
	timeout := fs.Duration("timeout", 15*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command: compare, hour, register or unregister")
	}

	c := client.New(*server, *timeout)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd := fs.Arg(0); cmd {
	case "compare":
		report, err := c.Compare(ctx, *lat, *lon)
		if err != nil {
			return err
		}
		printReport(out, report)
	case "hour":
		if fs.NArg() < 2 {
			return errors.New("usage: hour HH")
		}
		e, err := c.Hour(ctx, *lat, *lon, fs.Arg(1))
		if err != nil {
			return err
		}
		printHour(out, e)
	case "register":
		t, err := time.Parse("15:04", *at)
		if err != nil {
			return fmt.Errorf("invalid -at %q: %w", *at, err)
		}
		err = c.Register(ctx, notify.Registration{
			DeviceUID: *uid,
			PushToken: *token,
			Lat:       *lat,
			Lon:       *lon,
			Timezone:  *tz,
			Hour:      t.Hour(),
			Minute:    t.Minute(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "registered %s for %s %s\n", *uid, *at, *tz)
	case "unregister":
		if err := c.Unregister(ctx, *uid); err != nil {
			return err
		}
		fmt.Fprintf(out, "unregistered %s\n", *uid)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// badge renders a delta the way the widget does: an arrow and a signed value.
func badge(delta float64, unit string) string {
	arrow := "▲"
	if !common.IsUp(delta) {
		arrow = "▼"
	}
	return fmt.Sprintf("%s %s%s", arrow, common.FormatSigned(delta), unit)
}

func printReport(w io.Writer, r weather.Report) {
	s := r.Snapshot
	fmt.Fprintf(w, "%s  %.1f°C  %s  (%s, %s)\n",
		s.IconKey, s.Temperature.Current, badge(s.Temperature.Delta, "°C"),
		r.Provider, s.ObservedAt.Format("15:04"))
	fmt.Fprintf(w, "  feels like %.1f°C %s\n", s.FeelsLike.Current, badge(s.FeelsLike.Delta, "°C"))
	fmt.Fprintf(w, "  humidity   %.0f%%   %s\n", s.Humidity.Current, badge(s.Humidity.Delta, "%"))
	fmt.Fprintf(w, "  uv         %.1f    %s\n", s.UV.Current, badge(s.UV.Delta, ""))
}

func printHour(w io.Writer, e weather.HourlyComparison) {
	fmt.Fprintf(w, "%s:00  today vs yesterday\n", e.Hour)
	for _, m := range weather.Metrics {
		p := e.Point(m)
		fmt.Fprintf(w, "  %-12s %8s %8s %s\n", m, fmtPtr(p.Today), fmtPtr(p.Yesterday), deltaBadge(p.Delta))
	}
}

func fmtPtr(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func deltaBadge(d *float64) string {
	if d == nil {
		return ""
	}
	return badge(*d, "")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
