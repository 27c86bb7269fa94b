package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/ser-api/internal/emotion"
)

func main() {
	// Whatever happens, the caller gets a well-formed result object on
	// stdout, never a bare stack trace.
	defer func() {
		if r := recover(); r != nil {
			emotion.Failure(fmt.Errorf("%w: %v", emotion.ErrClassification, r), "").Write(os.Stdout)
			os.Exit(1)
		}
	}()

	log := logrus.New()
	log.SetOutput(os.Stderr)

	if err := newRootCmd(log).Execute(); err != nil {
		emotion.Failure(fmt.Errorf("%w: %v", emotion.ErrClassification, err), "").Write(os.Stdout)
		os.Exit(1)
	}
}
