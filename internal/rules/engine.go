// Package rules is the reference implementation of the rule-engine contract
// consumed by the session layer. It models a small WWII-themed board game:
// each player fields divisions from a reserve pool onto a grid and moves them
// around; capturing every enemy division while its reserve is empty wins.
// The session layer depends only on the game.Engine interface, so a richer
// engine can replace this one without touching orchestration.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kursor1337/chroniclesofww2-backend/internal/game"
)

const (
	MoveAdd    = "ADD"
	MoveMotion = "MOTION"
)

type DivisionType string

const (
	Infantry  DivisionType = "infantry"
	Armored   DivisionType = "armored"
	Artillery DivisionType = "artillery"
)

const (
	defaultBoardSize   = 8
	reservePerDivision = 4
)

var (
	ErrUnknownMoveKind = errors.New("unknown move kind")
	ErrUnresolvedMove  = errors.New("move is not resolved")
)

// Division is one unit on the board.
type Division struct {
	Type  DivisionType
	Owner string
}

// Move is the compact wire form of a move. Coordinates are encoded as
// row*10+column, which caps playable board width at 10.
type Move struct {
	MoveKind string       `json:"kind"`
	Division DivisionType `json:"division,omitempty"`
	Start    int          `json:"start,omitempty"`
	Dest     int          `json:"dest"`

	actor string
}

func (that *Move) Kind() string { return that.MoveKind }

func (that *Move) startCell() (row, column int) { return that.Start / 10, that.Start % 10 }

func (that *Move) destCell() (row, column int) { return that.Dest / 10, that.Dest % 10 }

// Engine holds the full board state for one session. The session serializes
// all calls, so no locking is needed here.
type Engine struct {
	initiator string
	connected string
	height    int
	width     int

	board    [][]*Division
	reserves map[string]map[DivisionType]int
	turn     string
}

// NewEngine builds a fresh engine for a session. It satisfies
// game.EngineFactory.
func NewEngine(cfg game.BoardConfig, initiator, connected string) (game.Engine, error) {
	height, width := cfg.Height, cfg.Width
	if height == 0 {
		height = defaultBoardSize
	}
	if width == 0 {
		width = defaultBoardSize
	}
	if height < 2 || width < 2 || width > 10 {
		return nil, fmt.Errorf("unplayable board %dx%d", height, width)
	}

	board := make([][]*Division, height)
	for row := range board {
		board[row] = make([]*Division, width)
	}

	reserves := map[string]map[DivisionType]int{
		initiator: newReserve(),
		connected: newReserve(),
	}

	first := initiator
	if cfg.InvertNations {
		first = connected
	}

	return &Engine{
		initiator: initiator,
		connected: connected,
		height:    height,
		width:     width,
		board:     board,
		reserves:  reserves,
		turn:      first,
	}, nil
}

func newReserve() map[DivisionType]int {
	return map[DivisionType]int{
		Infantry:  reservePerDivision,
		Armored:   reservePerDivision,
		Artillery: reservePerDivision,
	}
}

func (that *Engine) Decode(payload string) (game.Move, error) {
	var move Move
	if err := json.Unmarshal([]byte(payload), &move); err != nil {
		return nil, fmt.Errorf("failed to decode move: %w", err)
	}

	switch move.MoveKind {
	case MoveAdd, MoveMotion:
		return &move, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMoveKind, move.MoveKind)
	}
}

// Resolve binds the move to the acting player, which decides whose reserve an
// ADD move draws from.
func (that *Engine) Resolve(abstract game.Move, actor string) (game.Move, error) {
	move, ok := abstract.(*Move)
	if !ok {
		return nil, fmt.Errorf("%w: foreign move type %T", ErrUnknownMoveKind, abstract)
	}

	if actor != that.initiator && actor != that.connected {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedMove, actor)
	}

	resolved := *move
	resolved.actor = actor

	return &resolved, nil
}

func (that *Engine) Validate(abstract game.Move) bool {
	move, ok := abstract.(*Move)
	if !ok || move.actor == "" {
		return false
	}

	if move.actor != that.turn {
		return false
	}

	destRow, destColumn := move.destCell()
	if !that.inBounds(destRow, destColumn) {
		return false
	}

	switch move.MoveKind {
	case MoveAdd:
		if that.reserves[move.actor][move.Division] == 0 {
			return false
		}
		return that.board[destRow][destColumn] == nil
	case MoveMotion:
		startRow, startColumn := move.startCell()
		if !that.inBounds(startRow, startColumn) {
			return false
		}
		division := that.board[startRow][startColumn]
		if division == nil || division.Owner != move.actor {
			return false
		}
		// moving onto an own division is illegal, onto an enemy one captures
		target := that.board[destRow][destColumn]
		return target == nil || target.Owner != move.actor
	default:
		return false
	}
}

func (that *Engine) Apply(abstract game.Move) error {
	move, ok := abstract.(*Move)
	if !ok || move.actor == "" {
		return ErrUnresolvedMove
	}

	destRow, destColumn := move.destCell()

	switch move.MoveKind {
	case MoveAdd:
		that.reserves[move.actor][move.Division]--
		that.board[destRow][destColumn] = &Division{Type: move.Division, Owner: move.actor}
	case MoveMotion:
		startRow, startColumn := move.startCell()
		that.board[destRow][destColumn] = that.board[startRow][startColumn]
		that.board[startRow][startColumn] = nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMoveKind, move.MoveKind)
	}

	that.nextTurn()

	return nil
}

func (that *Engine) InitiatorLost() bool { return that.lost(that.initiator) }

func (that *Engine) ConnectedLost() bool { return that.lost(that.connected) }

// lost reports whether a player has nothing left to play: no divisions on the
// board and an empty reserve.
func (that *Engine) lost(player string) bool {
	for _, count := range that.reserves[player] {
		if count > 0 {
			return false
		}
	}
	for _, row := range that.board {
		for _, division := range row {
			if division != nil && division.Owner == player {
				return false
			}
		}
	}
	return true
}

func (that *Engine) nextTurn() {
	if that.turn == that.initiator {
		that.turn = that.connected
	} else {
		that.turn = that.initiator
	}
}

func (that *Engine) inBounds(row, column int) bool {
	return row >= 0 && row < that.height && column >= 0 && column < that.width
}
