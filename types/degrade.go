package types

import "fmt"

// DegradationPhase 降级阶段。数值越大降级越深，用于单调性比较。
type DegradationPhase int

const (
	// PhaseNormal 初始阶段，按原计划执行。
	PhaseNormal DegradationPhase = iota
	// PhaseReducedConcurrency 首次超时后：批大小减半、收紧单调用超时。
	PhaseReducedConcurrency
	// PhaseReducedScope 第二次超时后：压低 WordLimit，
	// 只保留预算内放得下的高优先级子集，其余直接 Skipped。
	PhaseReducedScope
	// PhaseEmergency 终态：用一次合并调用取代全部剩余请求。
	PhaseEmergency
)

// String 实现 fmt.Stringer。
func (p DegradationPhase) String() string {
	switch p {
	case PhaseNormal:
		return "normal"
	case PhaseReducedConcurrency:
		return "reduced_concurrency"
	case PhaseReducedScope:
		return "reduced_scope"
	case PhaseEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// DegradationState 单次运行的降级状态。
// 唯一写者是调度器（单写者纪律）；Advance 是唯一的变更入口。
type DegradationState struct {
	// Phase 当前阶段。
	Phase DegradationPhase `json:"phase"`

	// AttemptsRemaining 剩余可容忍的超时观测次数，≥ 0。
	// 每次超时观测消耗一次，耗尽即推进阶段。
	AttemptsRemaining int `json:"attempts_remaining"`
}

// NewDegradationState 返回初始状态：Normal，可容忍 attempts 次超时。
func NewDegradationState(attempts int) DegradationState {
	if attempts < 0 {
		attempts = 0
	}
	return DegradationState{Phase: PhaseNormal, AttemptsRemaining: attempts}
}

// Advance 将状态推进到 next 阶段。
// 同一运行内阶段不可回退；尝试回退（或原地踏步以外的倒序）返回错误。
func (s *DegradationState) Advance(next DegradationPhase) error {
	if next < s.Phase {
		return NewError(ErrInvalidTransition,
			fmt.Sprintf("degradation cannot regress from %s to %s", s.Phase, next))
	}
	s.Phase = next
	return nil
}

// ConsumeAttempt 消耗一次超时容忍额度，返回消耗后的剩余次数。
// 额度已为 0 时保持 0。
func (s *DegradationState) ConsumeAttempt() int {
	if s.AttemptsRemaining > 0 {
		s.AttemptsRemaining--
	}
	return s.AttemptsRemaining
}

// Terminal 报告是否已到达终态（Emergency）。
func (s DegradationState) Terminal() bool {
	return s.Phase == PhaseEmergency
}
