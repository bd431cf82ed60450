package fetcher

import (
	"os"

	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// readTestFile is a helper that reads a file written by the code under test.
func readTestFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}
