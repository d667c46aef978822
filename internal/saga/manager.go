package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	eventBufferSize     = 100
	compensationTimeout = 30 * time.Second
)

// Manager manages saga execution and keeps recent instances for status queries
type Manager struct {
	logger      *zap.Logger
	instances   map[SagaID]*SagaInstance
	definitions map[string]SagaDefinition
	eventChan   chan SagaEvent
	mu          sync.RWMutex
}

// NewManager creates a new saga manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger:      logger,
		instances:   make(map[SagaID]*SagaInstance),
		definitions: make(map[string]SagaDefinition),
		eventChan:   make(chan SagaEvent, eventBufferSize),
	}
}

// RegisterDefinition registers a saga definition, replacing any with the same ID
func (m *Manager) RegisterDefinition(def SagaDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[def.ID()] = def
	m.logger.Info("Saga definition registered",
		zap.String("id", def.ID()),
		zap.Int("steps", len(def.Steps())))
}

// Run executes a saga to completion on the calling goroutine. On the first
// failed step the completed steps are compensated in reverse order and the
// returned error is a *StepError wrapping the step's error. The returned
// instance is a snapshot.
func (m *Manager) Run(ctx context.Context, definitionID string, data SagaData) (*SagaInstance, error) {
	m.mu.Lock()
	def, exists := m.definitions[definitionID]
	if !exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("saga definition not found: %s", definitionID)
	}

	if data == nil {
		data = SagaData{}
	}

	sagaID := SagaID(fmt.Sprintf("%s_%s", definitionID, uuid.NewString()))
	steps := def.Steps()

	stepExecs := make([]StepExecution, len(steps))
	for i, step := range steps {
		stepExecs[i] = StepExecution{
			ID:    step.ID(),
			State: StepStatePending,
		}
	}

	instance := &SagaInstance{
		ID:         sagaID,
		Definition: definitionID,
		State:      SagaStateStarted,
		Data:       data,
		Steps:      stepExecs,
		StartedAt:  time.Now(),
	}
	m.instances[sagaID] = instance
	m.mu.Unlock()

	m.emitEvent(SagaEvent{
		SagaID:    sagaID,
		Type:      EventSagaStarted,
		Timestamp: instance.StartedAt,
		Data:      definitionID,
	})

	m.logger.Debug("Saga started", zap.String("sagaID", string(sagaID)), zap.String("definition", definitionID))

	err := m.executeSaga(ctx, sagaID, def, data)

	// The caller owns data from here on; finished instances only keep status.
	m.withInstance(sagaID, func(s *SagaInstance) { s.Data = nil })

	snapshot, _ := m.GetSaga(sagaID)
	return snapshot, err
}

// GetSaga returns a copy of a saga instance without its data
func (m *Manager) GetSaga(sagaID SagaID) (*SagaInstance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	instance, exists := m.instances[sagaID]
	if !exists {
		return nil, false
	}

	snapshot := *instance
	snapshot.Data = nil
	snapshot.Steps = make([]StepExecution, len(instance.Steps))
	copy(snapshot.Steps, instance.Steps)
	return &snapshot, true
}

// Prune removes finished instances that completed before olderThan ago and
// returns how many were removed
func (m *Manager) Prune(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, instance := range m.instances {
		if instance.Finished() && instance.CompletedAt != nil && instance.CompletedAt.Before(cutoff) {
			delete(m.instances, id)
			removed++
		}
	}
	return removed
}

// executeSaga executes a saga instance
func (m *Manager) executeSaga(ctx context.Context, sagaID SagaID, def SagaDefinition, data SagaData) error {
	m.updateSagaState(sagaID, SagaStateRunning)

	runCtx := ctx
	if timeout := def.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lastCompletedStep := -1
	for i, step := range def.Steps() {
		if err := m.executeStep(runCtx, sagaID, i, step, data); err != nil {
			m.logger.Warn("Step failed",
				zap.String("sagaID", string(sagaID)),
				zap.String("stepID", string(step.ID())),
				zap.Error(err))

			m.setSagaError(sagaID, err.Error())
			m.compensateSaga(ctx, sagaID, def, lastCompletedStep, data)
			return &StepError{SagaID: sagaID, StepID: step.ID(), Err: err}
		}
		lastCompletedStep = i
	}

	m.completeSaga(sagaID)
	return nil
}

// executeStep executes a single step
func (m *Manager) executeStep(ctx context.Context, sagaID SagaID, stepIndex int, step Step, data SagaData) error {
	m.updateStepState(sagaID, stepIndex, StepStateRunning)

	now := time.Now()
	m.setStepStartTime(sagaID, stepIndex, now)

	m.emitEvent(SagaEvent{
		SagaID:    sagaID,
		StepID:    step.ID(),
		Type:      EventStepStarted,
		Timestamp: now,
	})

	var result StepResult
	if err := ctx.Err(); err != nil {
		result = Failed(err)
	} else {
		result = step.Execute(ctx, data)
	}

	if !result.Success && result.Error == nil {
		result.Error = errors.New("step reported failure without an error")
	}

	now = time.Now()
	m.setStepCompletionTime(sagaID, stepIndex, now)

	if result.Success {
		m.setStepResult(sagaID, stepIndex, result.Data)
		m.updateStepState(sagaID, stepIndex, StepStateCompleted)

		m.emitEvent(SagaEvent{
			SagaID:    sagaID,
			StepID:    step.ID(),
			Type:      EventStepCompleted,
			Timestamp: now,
			Data:      result.Data,
		})

		m.logger.Debug("Step completed",
			zap.String("sagaID", string(sagaID)),
			zap.String("stepID", string(step.ID())))

		return nil
	}

	m.updateStepState(sagaID, stepIndex, StepStateFailed)
	m.setStepError(sagaID, stepIndex, result.Error.Error())

	m.emitEvent(SagaEvent{
		SagaID:    sagaID,
		StepID:    step.ID(),
		Type:      EventStepFailed,
		Timestamp: now,
		Data:      result.Error.Error(),
	})

	return result.Error
}

// compensateSaga runs compensation for completed steps in reverse order. It
// gets its own deadline so cleanup still runs after the run context expired.
func (m *Manager) compensateSaga(ctx context.Context, sagaID SagaID, def SagaDefinition, lastCompletedStep int, data SagaData) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	steps := def.Steps()
	for i := lastCompletedStep; i >= 0; i-- {
		step := steps[i]

		m.logger.Debug("Compensating step",
			zap.String("sagaID", string(sagaID)),
			zap.String("stepID", string(step.ID())))

		if err := step.Compensate(ctx, data); err != nil {
			m.logger.Error("Compensation failed",
				zap.String("sagaID", string(sagaID)),
				zap.String("stepID", string(step.ID())),
				zap.Error(err))
			continue
		}

		m.updateStepState(sagaID, i, StepStateCompensated)
		m.emitEvent(SagaEvent{
			SagaID:    sagaID,
			StepID:    step.ID(),
			Type:      EventStepCompensated,
			Timestamp: time.Now(),
		})
	}

	m.updateSagaState(sagaID, SagaStateCompensated)
	now := time.Now()
	m.setSagaCompletionTime(sagaID, now)

	m.emitEvent(SagaEvent{
		SagaID:    sagaID,
		Type:      EventSagaCompensated,
		Timestamp: now,
	})

	m.logger.Info("Saga compensated", zap.String("sagaID", string(sagaID)))
}

// completeSaga marks a saga as completed
func (m *Manager) completeSaga(sagaID SagaID) {
	m.updateSagaState(sagaID, SagaStateCompleted)
	now := time.Now()
	m.setSagaCompletionTime(sagaID, now)

	m.emitEvent(SagaEvent{
		SagaID:    sagaID,
		Type:      EventSagaCompleted,
		Timestamp: now,
	})

	m.logger.Debug("Saga completed", zap.String("sagaID", string(sagaID)))
}

// withInstance runs fn on the instance under the write lock
func (m *Manager) withInstance(sagaID SagaID, fn func(*SagaInstance)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, exists := m.instances[sagaID]; exists {
		fn(instance)
	}
}

func (m *Manager) withStep(sagaID SagaID, stepIndex int, fn func(*StepExecution)) {
	m.withInstance(sagaID, func(instance *SagaInstance) {
		if stepIndex < len(instance.Steps) {
			fn(&instance.Steps[stepIndex])
		}
	})
}

func (m *Manager) updateSagaState(sagaID SagaID, state SagaState) {
	m.withInstance(sagaID, func(s *SagaInstance) { s.State = state })
}

func (m *Manager) setSagaError(sagaID SagaID, errMsg string) {
	m.withInstance(sagaID, func(s *SagaInstance) { s.Error = errMsg })
}

func (m *Manager) setSagaCompletionTime(sagaID SagaID, t time.Time) {
	m.withInstance(sagaID, func(s *SagaInstance) { s.CompletedAt = &t })
}

func (m *Manager) updateStepState(sagaID SagaID, stepIndex int, state StepState) {
	m.withStep(sagaID, stepIndex, func(s *StepExecution) { s.State = state })
}

func (m *Manager) setStepStartTime(sagaID SagaID, stepIndex int, t time.Time) {
	m.withStep(sagaID, stepIndex, func(s *StepExecution) { s.StartedAt = &t })
}

func (m *Manager) setStepCompletionTime(sagaID SagaID, stepIndex int, t time.Time) {
	m.withStep(sagaID, stepIndex, func(s *StepExecution) { s.CompletedAt = &t })
}

func (m *Manager) setStepResult(sagaID SagaID, stepIndex int, result interface{}) {
	m.withStep(sagaID, stepIndex, func(s *StepExecution) { s.Result = result })
}

func (m *Manager) setStepError(sagaID SagaID, stepIndex int, errMsg string) {
	m.withStep(sagaID, stepIndex, func(s *StepExecution) { s.Error = errMsg })
}

func (m *Manager) emitEvent(event SagaEvent) {
	select {
	case m.eventChan <- event:
	default:
		m.logger.Debug("Event channel full, dropping event", zap.String("type", event.Type))
	}
}

// EventChannel returns the event channel for listening to saga events
func (m *Manager) EventChannel() <-chan SagaEvent {
	return m.eventChan
}
