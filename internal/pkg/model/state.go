package model

// stateIn is what a state sees after running its action.
type stateIn struct {
	failed bool
}

type state interface {
	name() string             // name of state
	transition(stateIn) state // transition check function
	action(*Assembler) error  // state action
}

type unregisteredState struct{}

func (unregisteredState) name() string {
	return "Unregistered"
}

func (unregisteredState) transition(in stateIn) state {
	if in.failed {
		return unregisteredState{}
	}
	return variablesDeclaredState{}
}

func (unregisteredState) action(a *Assembler) error {
	if err := a.register(); err != nil {
		return err
	}
	return a.declareVariables()
}

type variablesDeclaredState struct{}

func (variablesDeclaredState) name() string {
	return "VariablesDeclared"
}

func (variablesDeclaredState) transition(in stateIn) state {
	if in.failed {
		return unregisteredState{}
	}
	return constraintsDeclaredState{}
}

func (variablesDeclaredState) action(a *Assembler) error {
	return a.declareConstraints()
}

type constraintsDeclaredState struct{}

func (constraintsDeclaredState) name() string {
	return "ConstraintsDeclared"
}

func (constraintsDeclaredState) transition(in stateIn) state {
	if in.failed {
		return unregisteredState{}
	}
	return objectiveDeclaredState{}
}

func (constraintsDeclaredState) action(a *Assembler) error {
	return a.declareObjective()
}

type objectiveDeclaredState struct{}

func (objectiveDeclaredState) name() string {
	return "ObjectiveDeclared"
}

func (objectiveDeclaredState) transition(in stateIn) state {
	if in.failed {
		return unregisteredState{}
	}
	return builtState{}
}

func (objectiveDeclaredState) action(a *Assembler) error {
	return a.freeze()
}

// builtState is terminal and never resets. Build checks for it before running
// any action.
type builtState struct{}

func (builtState) name() string {
	return "Built"
}

func (builtState) transition(stateIn) state {
	return builtState{}
}

func (builtState) action(*Assembler) error {
	return nil
}
