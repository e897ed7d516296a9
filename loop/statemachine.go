package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State represents the possible states of an Agent turn.
type State int

//go:generate go tool golang.org/x/tools/cmd/stringer -type=State -trimprefix=State
const (
	// StateUnknown is the zero state
	StateUnknown State = iota
	// StateReady is the state of a new agent
	StateReady
	// StateWaitingForUserInput occurs between turns
	StateWaitingForUserInput
	// StateSendingToLLM occurs while a request is in flight
	StateSendingToLLM
	// StateProcessingLLMResponse occurs when a response has arrived
	StateProcessingLLMResponse
	// StateRunningTools occurs while requested tools execute
	StateRunningTools
	// StateEndOfTurn occurs when the model answers without tool use
	StateEndOfTurn
	// StateIterationLimit occurs when the turn used every allowed model call
	StateIterationLimit
	// StateCancelled occurs when the turn's context was cancelled
	StateCancelled
	// StateError occurs when a model request failed
	StateError
)

// StateTransition records one change of state.
type StateTransition struct {
	From        State
	To          State
	Description string
	Timestamp   time.Time
}

// StateMachine tracks the state of an Agent and rejects transitions
// that the turn flow never makes.
type StateMachine struct {
	mu             sync.RWMutex
	currentState   State
	stateEnteredAt time.Time
	transitions    map[State]map[State]bool
	history        []StateTransition
	maxHistorySize int
}

// NewStateMachine creates a state machine initialized to StateReady.
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		currentState:   StateReady,
		stateEnteredAt: time.Now(),
		transitions:    make(map[State]map[State]bool),
		maxHistorySize: 100,
	}
	sm.initTransitions()
	return sm
}

func (sm *StateMachine) initTransitions() {
	add := func(from State, to ...State) {
		if _, ok := sm.transitions[from]; !ok {
			sm.transitions[from] = make(map[State]bool)
		}
		for _, t := range to {
			sm.transitions[from][t] = true
		}
	}

	add(StateReady, StateWaitingForUserInput)
	add(StateWaitingForUserInput, StateSendingToLLM)
	add(StateSendingToLLM, StateProcessingLLMResponse, StateCancelled, StateError)
	add(StateProcessingLLMResponse, StateEndOfTurn, StateRunningTools)
	add(StateRunningTools, StateSendingToLLM, StateIterationLimit, StateCancelled)

	add(StateEndOfTurn, StateWaitingForUserInput)
	add(StateIterationLimit, StateWaitingForUserInput)
	add(StateCancelled, StateWaitingForUserInput)
	add(StateError, StateWaitingForUserInput)
}

// Transition moves to newState, or fails if the move is not allowed from the current state.
func (sm *StateMachine) Transition(ctx context.Context, newState State, event string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from := sm.currentState
	if !sm.transitions[from][newState] {
		return fmt.Errorf("invalid transition from %s to %s", from, newState)
	}
	duration := time.Since(sm.stateEnteredAt)
	sm.currentState = newState
	sm.stateEnteredAt = time.Now()
	sm.history = append(sm.history, StateTransition{
		From:        from,
		To:          newState,
		Description: event,
		Timestamp:   sm.stateEnteredAt,
	})
	if len(sm.history) > sm.maxHistorySize {
		sm.history = sm.history[len(sm.history)-sm.maxHistorySize:]
	}

	slog.DebugContext(ctx, "state transition",
		"from", from.String(),
		"to", newState.String(),
		"event", event,
		"duration", duration)
	return nil
}

// CurrentState returns the current state
func (sm *StateMachine) CurrentState() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// History returns a copy of the recorded transitions, oldest first.
func (sm *StateMachine) History() []StateTransition {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	h := make([]StateTransition, len(sm.history))
	copy(h, sm.history)
	return h
}
