package e2e

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
)

var opts = godog.Options{
	Output: colors.Colored(os.Stdout),
	Format: "pretty",
	Paths:  []string{"features"},
}

func init() {
	godog.BindCommandLineFlags("godog.", &opts)
}

func TestFeatures(t *testing.T) {
	flag.Parse()
	opts.TestingT = t

	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options:             &opts,
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

type scenarioKey struct{}

// scenarioProxy forwards step calls to the current scenario's context, which
// is replaced before every scenario.
type scenarioProxy struct {
	*TestContext
}

func InitializeScenario(sc *godog.ScenarioContext) {
	proxy := &scenarioProxy{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc, err := NewTestContext()
		if err != nil {
			return ctx, err
		}
		proxy.TestContext = tc
		return context.WithValue(ctx, scenarioKey{}, tc), nil
	})

	sc.After(func(ctx context.Context, s *godog.Scenario, err error) (context.Context, error) {
		tc, _ := ctx.Value(scenarioKey{}).(*TestContext)
		if tc == nil {
			return ctx, nil
		}
		if err != nil {
			fmt.Printf("Scenario failed: %s\nLast Response: %s\n", s.Name, string(tc.LastResponseBody))
		}
		return ctx, tc.Close()
	})

	RegisterSteps(sc, proxy)
}
