package e2e

import (
	"github.com/cucumber/godog"

	"memoledger/e2e/steps/common"
	"memoledger/e2e/steps/ledger"
)

type stepContext interface {
	common.TestContext
	ledger.TestContext
}

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc stepContext) {
	common.RegisterSteps(ctx, tc)
	ledger.RegisterSteps(ctx, tc)
}
