package testfixtures

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator hands out "<prefix>-<n>" ids starting at 1.
type IDGenerator struct {
	prefix string
	issued atomic.Uint64
}

// NewIDGenerator uses "id" when prefix is empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.issued.Add(1))
}

// NextFunc is Next in the shape the stores and services take.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return uuid.NewString
	}
	return g.Next
}

// NextUUID derives a stable UUID from the next sequential id, for callers
// that validate the UUID shape of event ids.
func (g *IDGenerator) NextUUID() string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(g.Next())).String()
}

// Issued reports how many ids were handed out.
func (g *IDGenerator) Issued() uint64 {
	return g.issued.Load()
}
