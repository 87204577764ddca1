package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kirimi-id/kirimi-go/internal/config"
	"github.com/kirimi-id/kirimi-go/internal/gateway"
	"github.com/kirimi-id/kirimi-go/internal/log"
	"github.com/kirimi-id/kirimi-go/internal/security"
	"github.com/kirimi-id/kirimi-go/pkg/kirimi"
	"github.com/kirimi-id/kirimi-go/pkg/kirimi/service"
)

const usage = `kirimi-cli - Send WhatsApp messages via the Kirimi API

Commands:
  health                                                   Check API availability
  send --to NUMBER --text "message" [--media URL]          Send a message
  otp send --phone NUMBER                                  Send a one-time password
  otp verify --phone NUMBER --code CODE                    Verify a one-time password
  notify welcome --to NUMBER --name NAME                   Send the welcome template
  notify order --to NUMBER --order ID --items "a,b,c"      Send an order confirmation
  notify invoice --to NUMBER --invoice N --document URL    Send an invoice with document
  notify appointment --to NUMBER --date D --time T --location L
                                                           Send an appointment reminder
  help                                                     Show this help

Environment:
  KIRIMI_CONFIG          Config file (default: ~/.config/kirimi/config.toml)
  KIRIMI_USER_CODE       Dashboard user code (required)
  KIRIMI_SECRET_KEY      Dashboard secret key (required)
  KIRIMI_DEVICE_ID       Sending device (required except for health)
  KIRIMI_ENDPOINT        API base URL (default: https://api.kirimi.id)
  KIRIMI_GATEWAY_URL     WebSocket gateway receiving results (optional)
  KIRIMI_GATEWAY_TOKEN   Gateway bearer token
  KIRIMI_LOG_LEVEL       debug, info, warn, error (default: info)
  KIRIMI_LOG_FORMAT      console or json (default: console)
  KIRIMI_SECURITY_MODE   open or allowlist (default: open)
  KIRIMI_ALLOWED_RECIPIENTS
                         Comma-separated numbers allowed in allowlist mode`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// app carries what every command needs once configuration has been resolved.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	client *kirimi.Client
	opts   []service.Option
	stdout io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return 1
	}

	switch args[0] {
	case "help", "--help", "-h":
		fmt.Fprintln(stdout, usage)
		return 0
	case "health", "send", "otp", "notify":
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage)
		return 1
	}

	// A missing .env is normal; variables already set are never overridden.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	logger, err := log.NewWithWriter(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if args[0] == "health" {
		err = cfg.Validate()
	} else {
		err = cfg.ValidateDevice()
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		client: kirimi.NewClient(cfg.Kirimi.UserCode, cfg.Kirimi.Secret,
			kirimi.WithEndpoint(cfg.Kirimi.Endpoint),
			kirimi.WithLogger(logger),
		),
		opts: []service.Option{
			service.WithLogger(logger),
			service.WithGuard(security.New(cfg.Security)),
		},
		stdout: stdout,
	}

	if cfg.Gateway.URL != "" {
		gw := gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.Token, logger)
		if err := gw.Connect(ctx); err != nil {
			logger.Warn("Gateway unavailable, results will not be published", zap.Error(err))
		} else {
			defer gw.Close()
			a.opts = append(a.opts, service.WithPublisher(gw))
		}
	}

	switch args[0] {
	case "health":
		err = a.health(ctx)
	case "send":
		err = a.send(ctx, args[1:])
	case "otp":
		err = a.otp(ctx, args[1:])
	case "notify":
		err = a.notify(ctx, args[1:])
	}

	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

// errFailed marks a call whose outcome was already printed.
var errFailed = errors.New("command failed")

func (a *app) health(ctx context.Context) error {
	status, err := a.client.HealthCheck(ctx)
	if err != nil {
		return err
	}
	return a.print(status)
}

func (a *app) send(ctx context.Context, args []string) error {
	flags, err := parseFlags(args, "to", "text", "media")
	if err != nil {
		return err
	}
	if flags["to"] == "" || flags["text"] == "" {
		return fmt.Errorf("%w: kirimi-cli send --to NUMBER --text \"message\" [--media URL]", errUsage)
	}

	var opts []kirimi.MessageOption
	if media := flags["media"]; media != "" {
		opts = append(opts, kirimi.WithMediaURL(media))
	}

	notif := service.NewNotificationService(a.client, a.cfg.Kirimi.DeviceID, a.opts...)
	return a.result(notif.SendCustomNotification(ctx, flags["to"], flags["text"], opts...))
}

func (a *app) otp(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: kirimi-cli otp send|verify ...", errUsage)
	}

	svc := service.NewOTPService(a.client, a.cfg.Kirimi.DeviceID, a.opts...)

	switch args[0] {
	case "send":
		flags, err := parseFlags(args[1:], "phone")
		if err != nil {
			return err
		}
		if flags["phone"] == "" {
			return fmt.Errorf("%w: kirimi-cli otp send --phone NUMBER", errUsage)
		}
		return a.result(svc.SendVerificationCode(ctx, flags["phone"]))

	case "verify":
		flags, err := parseFlags(args[1:], "phone", "code")
		if err != nil {
			return err
		}
		if flags["phone"] == "" || flags["code"] == "" {
			return fmt.Errorf("%w: kirimi-cli otp verify --phone NUMBER --code CODE", errUsage)
		}
		res := svc.VerifyCode(ctx, flags["phone"], flags["code"])
		if err := a.result(res); err != nil {
			return err
		}
		if !res.IsVerified() {
			return errFailed
		}
		return nil

	default:
		return fmt.Errorf("unknown otp command: %s", args[0])
	}
}

func (a *app) notify(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: kirimi-cli notify welcome|order|invoice|appointment ...", errUsage)
	}

	svc := service.NewNotificationService(a.client, a.cfg.Kirimi.DeviceID, a.opts...)

	switch args[0] {
	case "welcome":
		flags, err := requireFlags(args[1:], "to", "name")
		if err != nil {
			return err
		}
		return a.result(svc.SendWelcomeMessage(ctx, flags["to"], flags["name"]))

	case "order":
		flags, err := requireFlags(args[1:], "to", "order", "items")
		if err != nil {
			return err
		}
		return a.result(svc.SendOrderConfirmation(ctx, flags["to"], flags["order"], splitItems(flags["items"])))

	case "invoice":
		flags, err := requireFlags(args[1:], "to", "invoice", "document")
		if err != nil {
			return err
		}
		return a.result(svc.SendInvoiceWithDocument(ctx, flags["to"], flags["invoice"], flags["document"]))

	case "appointment":
		flags, err := requireFlags(args[1:], "to", "date", "time", "location")
		if err != nil {
			return err
		}
		return a.result(svc.SendAppointmentReminder(ctx, flags["to"], flags["date"], flags["time"], flags["location"]))

	default:
		return fmt.Errorf("unknown notify command: %s", args[0])
	}
}

func (a *app) result(res service.Result) error {
	if err := a.print(res); err != nil {
		return err
	}
	if !res.Success {
		return errFailed
	}
	return nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// parseFlags reads "--name value" pairs, accepting only the given names.
func parseFlags(args []string, names ...string) (map[string]string, error) {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}

	flags := make(map[string]string, len(names))
	for i := 0; i < len(args); i++ {
		name, ok := strings.CutPrefix(args[i], "--")
		if !ok || !allowed[name] {
			return nil, fmt.Errorf("unexpected argument: %s", args[i])
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("missing value for --%s", name)
		}
		flags[name] = args[i+1]
		i++
	}
	return flags, nil
}

// requireFlags is parseFlags where every name must be present and non-empty.
func requireFlags(args []string, names ...string) (map[string]string, error) {
	flags, err := parseFlags(args, names...)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, n := range names {
		if flags[n] == "" {
			missing = append(missing, "--"+n)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", errUsage, strings.Join(missing, ", "))
	}
	return flags, nil
}

func splitItems(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
