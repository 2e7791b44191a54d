// pkg/interaction/prompt.go

package interaction

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// PromptYesNo asks a y/N question on the terminal. The default answer is
// returned on empty input. Fails rather than blocking when stdin is not a
// terminal.
func PromptYesNo(prompt string, defaultYes bool) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		zap.L().Error("Cannot prompt: stdin is not a terminal", zap.String("prompt", prompt))
		return false, cerr.New("prompt failed: no terminal available")
	}

	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Printf("%s %s: ", prompt, suffix)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		zap.L().Error("Failed to read prompt response", zap.Error(err))
		return false, err
	}

	answer := strings.ToLower(strings.TrimSpace(input))
	zap.L().Debug("Prompt answered", zap.String("prompt", prompt), zap.String("answer", answer))

	switch answer {
	case "":
		return defaultYes, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// PromptInput displays a prompt and reads a line, returning defaultVal on
// empty input.
func PromptInput(prompt, defaultVal string) string {
	reader := bufio.NewReader(os.Stdin)
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Printf("%s: ", prompt)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
