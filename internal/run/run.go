package run

import (
	"fmt"
	"sort"
	"time"
)

// Status enumerates run lifecycle states as reported by the API.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusAborted    Status = "aborted"
	StatusCanceled   Status = "canceled"
)

// Operation describes what an instruction does on the workcell.
type Operation struct {
	Kind       string                 `json:"kind"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	// XHuman, when set, declares the operation's default execution mode.
	XHuman *bool `json:"x_human,omitempty"`
}

// Instruction is one orderable step of a Run. SequenceNo is a dense
// 0-based index that defines total order within the run and never
// changes after the run is created.
type Instruction struct {
	ID                 string     `json:"id"`
	SequenceNo         int        `json:"sequence_no"`
	Operation          Operation  `json:"operation"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	IsHumanByDefault   bool       `json:"is_human_by_default"`
	GeneratesArtifacts bool       `json:"generates_execution_support_artifacts"`
}

// Completed reports whether the instruction has a completion timestamp.
func (i Instruction) Completed() bool {
	return i.CompletedAt != nil
}

// TimeConstraint couples two instructions with a timing window.
type TimeConstraint struct {
	FromSequenceNo int           `json:"from_sequence_no"`
	ToSequenceNo   int           `json:"to_sequence_no"`
	LessThan       time.Duration `json:"less_than"`
}

// Run is the aggregate of instructions being executed and scheduled.
// Each open view owns an independent copy; mutation always goes
// through the With* helpers which return a fresh value, so snapshots
// stay comparable by structural equality.
type Run struct {
	ID                 string           `json:"id"`
	Status             Status           `json:"status"`
	LabID              string           `json:"lab_id"`
	ProjectID          string           `json:"project_id"`
	ScheduledToStartAt *time.Time       `json:"scheduled_to_start_at,omitempty"`
	Instructions       []Instruction    `json:"instructions"`
	TimeConstraints    []TimeConstraint `json:"time_constraints,omitempty"`
}

// Validate checks the sequence_no invariant: dense, unique, 0-based.
func (r Run) Validate() error {
	seen := make(map[int]string, len(r.Instructions))
	for _, instr := range r.Instructions {
		if other, ok := seen[instr.SequenceNo]; ok {
			return fmt.Errorf(
				"run %v: instructions %v and %v share sequence_no %v",
				r.ID, other, instr.ID, instr.SequenceNo)
		}
		seen[instr.SequenceNo] = instr.ID
	}

	for seq := 0; seq < len(r.Instructions); seq++ {
		if _, ok := seen[seq]; !ok {
			return fmt.Errorf("run %v: missing sequence_no %v", r.ID, seq)
		}
	}

	return nil
}

// Sorted returns the instructions in sequence order.
func (r Run) Sorted() []Instruction {
	instructions := make([]Instruction, len(r.Instructions))
	copy(instructions, r.Instructions)
	sort.Slice(instructions, func(i, j int) bool {
		return instructions[i].SequenceNo < instructions[j].SequenceNo
	})
	return instructions
}

// Instruction returns the instruction with the given sequence number.
func (r Run) Instruction(seq int) (Instruction, bool) {
	for _, instr := range r.Instructions {
		if instr.SequenceNo == seq {
			return instr, true
		}
	}
	return Instruction{}, false
}

// NonCompletedCount counts instructions without a completion timestamp.
func (r Run) NonCompletedCount() int {
	count := 0
	for _, instr := range r.Instructions {
		if !instr.Completed() {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the run.
func (r Run) Clone() Run {
	dst := r

	if r.ScheduledToStartAt != nil {
		at := *r.ScheduledToStartAt
		dst.ScheduledToStartAt = &at
	}

	dst.Instructions = make([]Instruction, len(r.Instructions))
	for i, instr := range r.Instructions {
		dst.Instructions[i] = cloneInstruction(instr)
	}

	if len(r.TimeConstraints) > 0 {
		dst.TimeConstraints = make([]TimeConstraint, len(r.TimeConstraints))
		copy(dst.TimeConstraints, r.TimeConstraints)
	}

	return dst
}

// WithInstruction returns a copy of the run with the instruction of
// matching id replaced. The original run is never touched.
func (r Run) WithInstruction(updated Instruction) Run {
	dst := r.Clone()
	for i, instr := range dst.Instructions {
		if instr.ID == updated.ID {
			dst.Instructions[i] = cloneInstruction(updated)
			break
		}
	}
	return dst
}

func cloneInstruction(src Instruction) Instruction {
	dst := src

	if src.CompletedAt != nil {
		at := *src.CompletedAt
		dst.CompletedAt = &at
	}

	if src.Operation.Parameters != nil {
		params := make(map[string]interface{}, len(src.Operation.Parameters))
		for k, v := range src.Operation.Parameters {
			params[k] = v
		}
		dst.Operation.Parameters = params
	}

	if src.Operation.XHuman != nil {
		xh := *src.Operation.XHuman
		dst.Operation.XHuman = &xh
	}

	return dst
}
