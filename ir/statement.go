package ir

// Block is an ordered statement sequence with single entry and exit.
type Block []Statement

// Statement is one step in a block.
type Statement struct {
	Kind StatementKind
}

// StatementKind is the tagged variant of statement payloads.
type StatementKind interface {
	statementKind()
}

// Range is a half-open span [Start, End) of expression handles.
type Range struct {
	Start ExpressionHandle
	End   ExpressionHandle
}

// StmtEmit schedules a range of expressions for evaluation at this point in
// the block, fixing their position relative to surrounding control flow.
type StmtEmit struct {
	Range Range
}

// StmtBlock is a nested scope.
type StmtBlock struct {
	Body Block
}

// StmtIf branches on a boolean condition.
type StmtIf struct {
	Condition ExpressionHandle
	Accept    Block
	Reject    Block
}

// SwitchValue is a case selector: an integer literal or the default case.
type SwitchValue interface {
	switchValue()
}

// SwitchCaseValue matches an integer selector value.
type SwitchCaseValue struct {
	Value int64
}

// SwitchDefault matches when no case does.
type SwitchDefault struct{}

func (SwitchCaseValue) switchValue() {}
func (SwitchDefault) switchValue()   {}

// SwitchCase is one arm of a switch.
type SwitchCase struct {
	Value       SwitchValue
	Body        Block
	FallThrough bool
}

// StmtSwitch dispatches on an integer selector.
type StmtSwitch struct {
	Selector ExpressionHandle
	Cases    []SwitchCase
}

// StmtLoop is a structured loop: Body runs each iteration, Continuing runs
// between iterations, and BreakIf (evaluated in the continuing block) exits
// the loop when true. The loop has a single back-edge to its header.
type StmtLoop struct {
	Body       Block
	Continuing Block
	BreakIf    *ExpressionHandle
}

// StmtBreak exits the innermost loop or switch.
type StmtBreak struct{}

// StmtContinue jumps to the innermost loop's continuing block.
type StmtContinue struct{}

// StmtReturn exits the function, optionally with a value.
type StmtReturn struct {
	Value *ExpressionHandle
}

// StmtKill discards the current fragment invocation.
type StmtKill struct{}

// StmtStore writes Value through Pointer.
type StmtStore struct {
	Pointer ExpressionHandle
	Value   ExpressionHandle
}

// StmtCall invokes a function. Result, when present, is the ExprCallResult
// handle the call defines.
type StmtCall struct {
	Function  FunctionHandle
	Arguments []ExpressionHandle
	Result    *ExpressionHandle
}

func (StmtEmit) statementKind()     {}
func (StmtBlock) statementKind()    {}
func (StmtIf) statementKind()       {}
func (StmtSwitch) statementKind()   {}
func (StmtLoop) statementKind()     {}
func (StmtBreak) statementKind()    {}
func (StmtContinue) statementKind() {}
func (StmtReturn) statementKind()   {}
func (StmtKill) statementKind()     {}
func (StmtStore) statementKind()    {}
func (StmtCall) statementKind()     {}
