package support

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// theErrorShouldMention checks the combined output of a failed command,
// case-insensitively.
func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded, expected an error mentioning %q", text)
	}
	if !strings.Contains(strings.ToLower(testCtx.LastOutput), strings.ToLower(text)) {
		return fmt.Errorf("error output does not mention %q\nOutput: %s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theExitCodeShouldBe(code int) error {
	if testCtx.LastExitCode != code {
		return fmt.Errorf("exit code %d, want %d\nOutput: %s", testCtx.LastExitCode, code, testCtx.LastOutput)
	}
	return nil
}

// RegisterErrorSteps registers the failure assertions.
func (testCtx *TestContext) RegisterErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the exit code should be (\d+)$`, testCtx.theExitCodeShouldBe)
}
