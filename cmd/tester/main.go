package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duo-chat/client"
	"duo-chat/domain/event"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config of the smoke tester, read from TESTER_* variables.
type Config struct {
	ServerURL string        `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	Password  string        `envconfig:"PASSWORD" default:"SmokeTest123!"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"5s"`
	Colours   bool          `envconfig:"COLOURS" default:"true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Smoke test failed: %v\n", err)
	}
	os.Exit(code)
}

// run registers two throwaway accounts, connects both and checks that a
// message from one reaches the other.
func run() (int, error) {
	var config Config
	if err := envconfig.Process("tester", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if !config.Colours {
		color.Disable()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(config.ServerURL, config.Timeout)
	suffix := uuid.NewString()[:8]

	step("Registering accounts on %s", config.ServerURL)
	aliceToken, err := c.Register(ctx, client.Credentials{Name: "alice-" + suffix, Email: "alice-" + suffix + "@smoke.test", Password: config.Password})
	if err != nil {
		return fail(err)
	}
	bobToken, err := c.Register(ctx, client.Credentials{Name: "bob-" + suffix, Email: "bob-" + suffix + "@smoke.test", Password: config.Password})
	if err != nil {
		return fail(err)
	}
	ok("two accounts created")

	step("Connecting both sessions")
	alice, err := c.Connect(ctx, aliceToken)
	if err != nil {
		return fail(err)
	}
	defer alice.Close()
	bob, err := c.Connect(ctx, bobToken)
	if err != nil {
		return fail(err)
	}
	defer bob.Close()

	var online []string
	if err := bob.WaitFor(event.OnlineUser, config.Timeout, &online); err != nil {
		return fail(err)
	}
	ok(fmt.Sprintf("%d user(s) online", len(online)))

	step("Opening the conversation")
	aliceID, err := client.UserID(aliceToken)
	if err != nil {
		return fail(err)
	}
	bobID, err := client.UserID(bobToken)
	if err != nil {
		return fail(err)
	}
	if err := alice.Send(event.MessagePage, bobID); err != nil {
		return fail(err)
	}
	var bobProfile event.UserSummary
	if err := alice.WaitFor(event.MessageUser, config.Timeout, &bobProfile); err != nil {
		return fail(err)
	}
	ok("peer profile " + bobProfile.Name)

	step("Sending a message")
	if err := alice.Send(event.NewMessage, event.NewMessageRequest{
		Sender:   aliceID,
		Receiver: bobID,
		Text:     "smoke " + suffix,
	}); err != nil {
		return fail(err)
	}
	var thread []event.MessageView
	if err := bob.WaitFor(event.Message, config.Timeout, &thread); err != nil {
		return fail(err)
	}
	if len(thread) == 0 || thread[len(thread)-1].Text != "smoke "+suffix {
		return fail(fmt.Errorf("unexpected thread %+v", thread))
	}
	ok("message delivered")

	color.Green.Println("\nSMOKE TEST PASSED")
	return exitOK, nil
}

func step(format string, args ...any) {
	color.Cyan.Printf("==> "+format+"\n", args...)
}

func ok(message string) {
	color.Green.Printf("    ok  %s\n", message)
}

func fail(err error) (int, error) {
	color.Red.Printf("    FAIL %v\n", err)
	return exitRuntime, err
}
