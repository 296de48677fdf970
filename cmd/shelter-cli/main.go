package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shelterlink/internal/config"
	"shelterlink/internal/credstore"
	"shelterlink/internal/domain"
	"shelterlink/internal/marketplace"
	"shelterlink/internal/notify"
	"shelterlink/internal/observability"
	"shelterlink/internal/provider"
	"shelterlink/internal/session"
	"shelterlink/internal/transport"
)

const usage = `shelter-cli <command> [flags]

Commands:
  login         -email -password        sign in with email and password
  social-login                          sign in through the social provider
  logout                                sign out
  me                                    show the signed-in user
  recruitments  [-keyword] [-region]    search volunteer postings
  show          -id                     show one posting
  apply         -id -date -start -end   apply for a time slot
  mine                                  list my applications
  cancel        -id                     cancel an application
  applicants    -id                     list applicants on my posting
  approve       -id                     approve an application
  reject        -id                     reject an application
  attend        -id [-absent]           mark attendance
  watch                                 stream status notifications
`

func main() {
	cfg := config.Load()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "warn"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "text"
	}
	observability.InitLogger(logLevel, logFormat)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	api := transport.New(cfg.APIBaseURL,
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithRateLimit(cfg.RequestsPerSecond, 5),
	)
	store := credstore.NewFileStore(cfg.CredentialPath, cfg.CredentialPass)
	mgr := session.NewManager(api, store)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := mgr.Restore(ctx); err != nil {
		slog.Warn("stored session discarded", slog.String("error", err.Error()))
	}

	cmd, args := os.Args[1], os.Args[2:]
	if err := run(ctx, cmd, args, cfg, mgr, api); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	mgr.Wait()
}

func run(ctx context.Context, cmd string, args []string, cfg *config.Config, mgr *session.Manager, api *transport.Client) error {
	recruitments := marketplace.NewRecruitmentService(api)
	applications := marketplace.NewApplicationService(api)

	switch cmd {
	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		fs.Parse(args)
		if *email == "" || *password == "" {
			return fmt.Errorf("both -email and -password are required")
		}
		user, err := mgr.Login(ctx, *email, *password)
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s (%s)\n", user.Name, user.Role)
		return nil

	case "social-login":
		return socialLogin(ctx, cfg, mgr)

	case "logout":
		mgr.Logout(ctx)
		fmt.Println("signed out")
		return nil

	case "me":
		user := mgr.CurrentUser()
		if user == nil {
			return domain.ErrNotAuthenticated
		}
		fmt.Printf("%s <%s> role=%s\n", user.Name, user.Email, user.Role)
		return nil

	case "recruitments":
		fs := flag.NewFlagSet("recruitments", flag.ExitOnError)
		keyword := fs.String("keyword", "", "search keyword")
		region := fs.String("region", "", "region filter")
		page := fs.Int("page", 1, "page number")
		fs.Parse(args)
		result, err := recruitments.List(ctx, marketplace.SearchParams{
			Keyword: *keyword,
			Region:  *region,
			Page:    *page,
		})
		if err != nil {
			return err
		}
		for _, rec := range result.Items {
			fmt.Printf("%s  %-30s  %s  %s..%s  [%s]\n",
				rec.ID, rec.Title, rec.Region, rec.StartDate, rec.EndDate, rec.Status)
		}
		fmt.Printf("page %d, %d total\n", result.Page, result.Total)
		return nil

	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		id := fs.String("id", "", "recruitment id")
		fs.Parse(args)
		rec, err := recruitments.Get(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Printf("%s — %s\n%s\nregion: %s  window: %s..%s  capacity: %d\n",
			rec.ID, rec.Title, rec.Description, rec.Region, rec.StartDate, rec.EndDate, rec.Capacity)
		for _, slot := range rec.Slots {
			fmt.Printf("  slot %s %s-%s\n", slot.Date, slot.Start, slot.End)
		}
		return nil

	case "apply":
		fs := flag.NewFlagSet("apply", flag.ExitOnError)
		id := fs.String("id", "", "recruitment id")
		date := fs.String("date", "", "slot date (2006-01-02)")
		start := fs.String("start", "", "slot start (15:04)")
		end := fs.String("end", "", "slot end (15:04)")
		fs.Parse(args)
		rec, err := recruitments.Get(ctx, *id)
		if err != nil {
			return err
		}
		app, err := applications.Apply(ctx, rec, domain.TimeSlot{Date: *date, Start: *start, End: *end})
		if err != nil {
			return err
		}
		fmt.Printf("applied: %s (%s)\n", app.ID, app.Status)
		return nil

	case "mine":
		result, err := applications.Mine(ctx, 1)
		if err != nil {
			return err
		}
		for _, app := range result.Items {
			fmt.Printf("%s  recruitment=%s  %s %s-%s  [%s]\n",
				app.ID, app.RecruitmentID, app.Slot.Date, app.Slot.Start, app.Slot.End, app.Status)
		}
		return nil

	case "cancel":
		return withID(args, "application id", func(id string) error {
			return applications.Cancel(ctx, id)
		})

	case "applicants":
		fs := flag.NewFlagSet("applicants", flag.ExitOnError)
		id := fs.String("id", "", "recruitment id")
		fs.Parse(args)
		result, err := recruitments.Applicants(ctx, *id, 1)
		if err != nil {
			return err
		}
		for _, app := range result.Items {
			fmt.Printf("%s  %s  %s %s-%s  [%s]\n",
				app.ID, app.VolunteerName, app.Slot.Date, app.Slot.Start, app.Slot.End, app.Status)
		}
		return nil

	case "approve":
		return withID(args, "application id", func(id string) error {
			return applications.Approve(ctx, id)
		})

	case "reject":
		return withID(args, "application id", func(id string) error {
			return applications.Reject(ctx, id)
		})

	case "attend":
		fs := flag.NewFlagSet("attend", flag.ExitOnError)
		id := fs.String("id", "", "application id")
		absent := fs.Bool("absent", false, "mark as absent instead")
		fs.Parse(args)
		if *id == "" {
			return fmt.Errorf("-id is required")
		}
		return applications.MarkAttendance(ctx, *id, !*absent)

	case "watch":
		return watch(ctx, cfg, mgr)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func withID(args []string, what string, fn func(id string) error) error {
	fs := flag.NewFlagSet("id", flag.ExitOnError)
	id := fs.String("id", "", what)
	fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	return fn(*id)
}

func socialLogin(ctx context.Context, cfg *config.Config, mgr *session.Manager) error {
	p, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	code, err := p.Handshake(ctx, func(authorizeURL string) {
		fmt.Printf("open this URL to sign in:\n\n  %s\n\nwaiting for the provider to redirect back...\n", authorizeURL)
	})
	if err != nil {
		return err
	}

	user, err := mgr.SocialLogin(ctx, p.Name(), code)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s (%s) via %s\n", user.Name, user.Role, p.Name())
	return nil
}

func buildProvider(cfg *config.Config) (*provider.Provider, error) {
	if cfg.ProviderClientID == "" {
		return nil, fmt.Errorf("PROVIDER_CLIENT_ID is not configured")
	}
	if cfg.ProviderAuthURL != "" {
		return provider.New(provider.Config{
			Name:       cfg.ProviderName,
			ClientID:   cfg.ProviderClientID,
			AuthURL:    cfg.ProviderAuthURL,
			ListenAddr: cfg.ProviderCallbackAddr,
		})
	}
	return provider.NewKakao(cfg.ProviderClientID, cfg.ProviderCallbackAddr)
}

func watch(ctx context.Context, cfg *config.Config, mgr *session.Manager) error {
	client := notify.NewClient(cfg.APIBaseURL, mgr.AccessToken)
	events, err := client.Listen(ctx)
	if err != nil {
		return err
	}

	fmt.Println("watching for status notifications, ctrl-c to stop")
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for ev := range events {
		ts := ev.At
		if ts.IsZero() {
			ts = time.Now()
		}
		line := fmt.Sprintf("%s  %s  application=%s", ts.Format(time.TimeOnly), ev.Type, ev.ApplicationID)
		if ev.Message != "" {
			line += "  " + ev.Message
		}
		fmt.Fprintln(out, line)
		out.Flush()
	}
	return nil
}
