package core

import (
	"sync"
	"time"

	"github.com/automoto/krazykarts-mp/logging"
	"github.com/leap-fish/necs/esync/srvsync"
	"github.com/rs/zerolog"
)

type GameLoop struct {
	server   *Server
	tickRate int
	stopChan chan struct{}
	stopOnce sync.Once
	log      zerolog.Logger
}

func NewGameLoop(server *Server, tickRate int) *GameLoop {
	return &GameLoop{
		server:   server,
		tickRate: tickRate,
		stopChan: make(chan struct{}),
		log:      logging.For("loop"),
	}
}

func (g *GameLoop) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(g.tickRate))
	defer ticker.Stop()

	g.log.Info().Int("tickRate", g.tickRate).Msg("game loop started")

	for {
		select {
		case <-g.stopChan:
			g.log.Info().Msg("game loop stopped")
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

// Stop ends Run. Calling it more than once is safe.
func (g *GameLoop) Stop() {
	g.stopOnce.Do(func() { close(g.stopChan) })
}

func (g *GameLoop) tick() {
	g.server.tick(1 / float64(g.tickRate))

	if err := srvsync.DoSync(); err != nil {
		g.log.Warn().Err(err).Msg("sync error")
	}
}
