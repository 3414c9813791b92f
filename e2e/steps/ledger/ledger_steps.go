package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTWithHeaders(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	CallerHeaders(externalID string) (map[string]string, error)
	AdminHeaders() map[string]string
	Advance(d time.Duration)
}

// RegisterSteps registers ledger step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ledgerSteps{tc: tc}

	ctx.Step(`^the ledger is initialized$`, steps.ledgerIsInitialized)
	ctx.Step(`^the admin initializes the ledger$`, steps.adminInitializes)
	ctx.Step(`^"([^"]*)" registers$`, steps.register)
	ctx.Step(`^"([^"]*)" is registered$`, steps.isRegistered)
	ctx.Step(`^"([^"]*)" mints daily tokens$`, steps.mintDaily)
	ctx.Step(`^"([^"]*)" locks (\d+) tokens$`, steps.lock)
	ctx.Step(`^"([^"]*)" views their account$`, steps.viewAccount)
	ctx.Step(`^(\d+) hours pass$`, steps.hoursPass)
	ctx.Step(`^"([^"]*)" connects "([^"]*)" with secret "([^"]*)" and "([^"]*)" with secret "([^"]*)" as "([^"]*)"$`, steps.connect)
	ctx.Step(`^"([^"]*)" unlocks "([^"]*)" with secret "([^"]*)"$`, steps.unlock)
	ctx.Step(`^"([^"]*)" views connection "([^"]*)"$`, steps.viewConnection)
	ctx.Step(`^"([^"]*)" views the ledger$`, steps.viewLedger)
	ctx.Step(`^"([^"]*)" should hold (\d+) personal and (\d+) reward tokens$`, steps.shouldHold)
}

type ledgerSteps struct {
	tc TestContext
}

func (s *ledgerSteps) adminInitializes(ctx context.Context) error {
	return s.tc.POSTWithHeaders("/admin/ledger/initialize", nil, s.tc.AdminHeaders())
}

func (s *ledgerSteps) ledgerIsInitialized(ctx context.Context) error {
	if err := s.adminInitializes(ctx); err != nil {
		return err
	}
	return s.expectStatus(201)
}

func (s *ledgerSteps) post(caller, path string, body any) error {
	headers, err := s.tc.CallerHeaders(caller)
	if err != nil {
		return err
	}
	return s.tc.POSTWithHeaders(path, body, headers)
}

func (s *ledgerSteps) get(caller, path string) error {
	headers, err := s.tc.CallerHeaders(caller)
	if err != nil {
		return err
	}
	return s.tc.GET(path, headers)
}

func (s *ledgerSteps) register(ctx context.Context, caller string) error {
	return s.post(caller, "/v1/accounts", nil)
}

func (s *ledgerSteps) isRegistered(ctx context.Context, caller string) error {
	if err := s.register(ctx, caller); err != nil {
		return err
	}
	return s.expectStatus(201)
}

func (s *ledgerSteps) mintDaily(ctx context.Context, caller string) error {
	return s.post(caller, "/v1/accounts/me/mint-daily", nil)
}

func (s *ledgerSteps) lock(ctx context.Context, caller string, amount int) error {
	return s.post(caller, "/v1/accounts/me/lock", map[string]int{"amount": amount})
}

func (s *ledgerSteps) viewAccount(ctx context.Context, caller string) error {
	return s.get(caller, "/v1/accounts/me")
}

func (s *ledgerSteps) hoursPass(ctx context.Context, hours int) error {
	s.tc.Advance(time.Duration(hours) * time.Hour)
	return nil
}

func commitment(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func (s *ledgerSteps) connect(ctx context.Context, caller, a, secretA, b, secretB, id string) error {
	return s.post(caller, "/v1/connections", map[string]string{
		"connection_id": id,
		"identity_a":    a,
		"identity_b":    b,
		"commit_a":      commitment(secretA),
		"commit_b":      commitment(secretB),
	})
}

func (s *ledgerSteps) unlock(ctx context.Context, caller, id, secret string) error {
	return s.post(caller, "/v1/connections/"+id+"/unlock", map[string]string{"secret": secret})
}

func (s *ledgerSteps) viewConnection(ctx context.Context, caller, id string) error {
	return s.get(caller, "/v1/connections/"+id)
}

func (s *ledgerSteps) viewLedger(ctx context.Context, caller string) error {
	return s.get(caller, "/v1/ledger")
}

func (s *ledgerSteps) shouldHold(ctx context.Context, caller string, personal, reward int) error {
	if err := s.viewAccount(ctx, caller); err != nil {
		return err
	}
	if err := s.expectStatus(200); err != nil {
		return err
	}
	for field, want := range map[string]int{"balances.personal": personal, "balances.reward": reward} {
		got, err := s.tc.GetResponseField(field)
		if err != nil {
			return err
		}
		if fmt.Sprint(got) != strconv.Itoa(want)+".000000000" {
			return fmt.Errorf("%s %s: expected %d but got %v", caller, field, want, got)
		}
	}
	return nil
}

func (s *ledgerSteps) expectStatus(want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s", want, got, s.tc.GetLastResponseBody())
	}
	return nil
}
