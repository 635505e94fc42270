// Package fleet loads a declarative YAML enrollment file applied at boot.
// Operators use it to pre-provision bots without driving the HTTP API.
package fleet

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gluk-w/bothive/internal/session"
)

// Enrollment is one bot in the fleet file.
type Enrollment struct {
	BotName     string `yaml:"botName"`
	OwnerNumber string `yaml:"ownerNumber"`
	SessionID   string `yaml:"sessionId"`
}

type fleetFile struct {
	Bots []Enrollment `yaml:"bots"`
}

// Load reads and validates a fleet file. Every entry must carry all three
// fields and a decodable seed; a single bad entry rejects the whole file
// so a typo cannot silently drop bots.
func Load(path string) ([]Enrollment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet file: %w", err)
	}

	var f fleetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fleet file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Bots))
	for i, e := range f.Bots {
		if e.BotName == "" || e.OwnerNumber == "" || e.SessionID == "" {
			return nil, fmt.Errorf("fleet entry %d: botName, ownerNumber and sessionId are all required", i)
		}
		if _, dup := seen[e.BotName]; dup {
			return nil, fmt.Errorf("fleet entry %d: duplicate bot name %q", i, e.BotName)
		}
		seen[e.BotName] = struct{}{}
		if err := session.ValidateSeed(e.SessionID); err != nil {
			return nil, fmt.Errorf("fleet entry %d (%s): %w", i, e.BotName, err)
		}
	}
	return f.Bots, nil
}
