// Package hk provides mechanism for registering cleanup
// functions which are invoked at specified intervals.
package hk_test

import (
	"testing"

	"github.com/tsukushibito/unity-mcp-bridge/hk"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestHousekeeper(t *testing.T) {
	hk.TestInit()
	go hk.DefaultHK.Run()
	hk.WaitStarted()
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}
