package callback

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"blocklens/pkg/engine"
)

func init() {
	Register("help", func() engine.Callback { return &Help{} })
}

// Help is the default callback (spec §6.3): it does no parsing work and
// simply prints the registered callback names at Wrapup.
type Help struct {
	Base
}

func (*Help) Name() string { return "help" }

func (*Help) Wrapup() error {
	for _, name := range Names() {
		if name == "help" {
			continue
		}
		fmt.Println(name)
	}
	log.Info().Strs("callbacks", Names()).Msg("registered callbacks")
	return nil
}
