// Package exec implements the PTB executor (spec §4.7, component C7):
// argument resolution and sequential command dispatch, grounded on the
// teacher's core/virtual_machine.go opcode-dispatch loop (resolve operands,
// dispatch on a kind tag, stop on first failure).
//
// This is a deterministic, structural executor: it tracks which objects a
// command's arguments touch and updates the created/mutated/deleted/
// transferred sets accordingly, the way the spec's replay engine needs for
// version bookkeeping and reconciliation. It does not interpret Move
// bytecode bodies — that would require a full bytecode interpreter no
// library in this stack provides, and the spec's own focus (§1) is the
// replay plumbing around the VM, not faithful arbitrary-program execution.
package exec

import (
	"context"

	"sui-replay/internal/addr"
	"sui-replay/internal/effects"
	"sui-replay/internal/errs"
	"sui-replay/internal/ptb"
	"sui-replay/internal/typetag"
)

// ObjectRef is a resolved object-shaped value: its id, pinned version,
// type tag, and BCS bytes.
type ObjectRef struct {
	ID      string
	Version uint64
	TypeTag string
	Bytes   []byte
}

// Value is a resolved Argument: either an object reference or a pure byte
// string.
type Value struct {
	IsObject bool
	Object   ObjectRef
	Pure     []byte
}

// Environment is what the harness (C6) provides the executor to resolve
// inputs and record effects against. Defined here (rather than depending
// on package vmharness) so vmharness can depend on exec without a cycle.
type Environment interface {
	// Input resolves a PTB input slot. For InputReceiving, materialization
	// is lazy: the first Input() call for that slot is what "a command
	// actually consumes it" means (spec §4.6).
	Input(i int) (Value, error)
	GasCoin() Value

	LookupFunction(pkg addr.Address, module, fn string) (typetag.FunctionSignature, bool)
	ClassifyParam(t typetag.TypeTag) typetag.ParamKind

	NewObjectID() string

	RecordCreated(obj ObjectRef)
	RecordMutated(obj ObjectRef)
	RecordDeleted(id string)
	RecordWrapped(id string)
	RecordUnwrapped(id string)
	RecordTransferred(id string, recipient string)
	RecordReceived(id string)
	EmitEvent(ev effects.EmittedEvent)

	// Abort records a VM/move abort for a command and returns the error to
	// propagate as the failure reason.
	Abort(commandIndex int, description string) error

	// Effects returns the accumulator this Environment's Record* calls are
	// writing into.
	Effects() *effects.Effects
}

// FailureCapture records the harness's failure bookkeeping contract (spec
// §4.6): the failing command, its description, and how many commands
// succeeded before it.
type FailureCapture struct {
	FailedCommandIndex       int
	FailedCommandDescription string
	CommandsSucceeded        int
}

// Executor runs a Transaction's commands in order against an Environment.
type Executor struct {
	env     Environment
	results map[int][]Value
}

// NewExecutor builds an Executor bound to env.
func NewExecutor(env Environment) *Executor {
	return &Executor{env: env, results: make(map[int][]Value)}
}

// Run executes every command of tx in declaration order (spec §4.7
// Ordering), stopping at the first failure. Returns the accumulated
// effects and, on failure, a FailureCapture describing where it stopped.
func (e *Executor) Run(ctx context.Context, tx *ptb.Transaction) (*effects.Effects, *FailureCapture) {
	eff := e.env.Effects()

	for i, cmd := range tx.Commands {
		if err := ctx.Err(); err != nil {
			eff.Fail(err.Error())
			return eff, &FailureCapture{FailedCommandIndex: i, FailedCommandDescription: "context canceled", CommandsSucceeded: i}
		}

		results, err := e.dispatch(i, cmd)
		if err != nil {
			eff.Fail(err.Error())
			return eff, &FailureCapture{
				FailedCommandIndex:        i,
				FailedCommandDescription:  cmd.Kind.String() + ": " + err.Error(),
				CommandsSucceeded:         i,
			}
		}
		e.results[i] = results
	}

	return eff, nil
}

func (e *Executor) resolve(a ptb.Argument) (Value, error) {
	switch a.Kind {
	case ptb.ArgInput:
		return e.env.Input(a.InputIndex)
	case ptb.ArgGasCoin:
		return e.env.GasCoin(), nil
	case ptb.ArgResult:
		return e.nestedResult(a.ResultCmd, 0)
	case ptb.ArgNestedResult:
		return e.nestedResult(a.ResultCmd, a.ResultIdx)
	default:
		return Value{}, errs.Newf(errs.Abort, "unknown argument kind %d", a.Kind)
	}
}

func (e *Executor) nestedResult(cmdIdx, resultIdx int) (Value, error) {
	rs, ok := e.results[cmdIdx]
	if !ok {
		return Value{}, errs.Newf(errs.Abort, "Result(%d) referenced before command %d executed", cmdIdx, cmdIdx)
	}
	if resultIdx >= len(rs) {
		return Value{}, errs.Newf(errs.Abort, "NestedResult(%d, %d) out of range (command produced %d results)", cmdIdx, resultIdx, len(rs))
	}
	return rs[resultIdx], nil
}

func (e *Executor) dispatch(idx int, cmd ptb.Command) ([]Value, error) {
	switch cmd.Kind {
	case ptb.CmdMoveCall:
		return e.runMoveCall(idx, cmd.MoveCall)
	case ptb.CmdSplitCoins:
		return e.runSplitCoins(cmd.SplitCoins)
	case ptb.CmdMergeCoins:
		return e.runMergeCoins(cmd.MergeCoins)
	case ptb.CmdTransferObjects:
		return e.runTransferObjects(cmd.TransferObjects)
	case ptb.CmdMakeMoveVec:
		return e.runMakeMoveVec(cmd.MakeMoveVec)
	case ptb.CmdPublish:
		return e.runPublish(cmd.Publish)
	case ptb.CmdUpgrade:
		return e.runUpgrade(cmd.Upgrade)
	default:
		return nil, errs.Newf(errs.Abort, "unknown command kind %d", cmd.Kind)
	}
}

func (e *Executor) runMoveCall(idx int, c *ptb.MoveCall) ([]Value, error) {
	args := make([]Value, len(c.Arguments))
	for i, a := range c.Arguments {
		v, err := e.resolve(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
		// Any object-shaped argument a Move call receives is conservatively
		// treated as mutated: without a real bytecode interpreter we cannot
		// know whether the call only reads it.
		if v.IsObject {
			e.env.RecordMutated(v.Object)
		}
	}

	sig, ok := e.env.LookupFunction(c.Package, c.Module, c.Function)
	if !ok {
		return nil, e.env.Abort(idx, "unresolved function "+c.Module+"::"+c.Function)
	}

	results := make([]Value, 0, len(sig.Returns))
	for _, ret := range sig.Returns {
		if e.env.ClassifyParam(ret) == typetag.ParamObject {
			newID := e.env.NewObjectID()
			obj := ObjectRef{ID: newID, TypeTag: typetag.FormatTypeTag(ret)}
			e.env.RecordCreated(obj)
			results = append(results, Value{IsObject: true, Object: obj})
		} else {
			results = append(results, Value{IsObject: false, Pure: nil})
		}
	}
	return results, nil
}

func (e *Executor) runSplitCoins(c *ptb.SplitCoins) ([]Value, error) {
	coin, err := e.resolve(c.Coin)
	if err != nil {
		return nil, err
	}
	if !coin.IsObject {
		return nil, errs.New(errs.Abort, "SplitCoins: coin argument is not an object")
	}
	e.env.RecordMutated(coin.Object)

	results := make([]Value, 0, len(c.Amounts))
	for _, amt := range c.Amounts {
		if _, err := e.resolve(amt); err != nil {
			return nil, err
		}
		newID := e.env.NewObjectID()
		obj := ObjectRef{ID: newID, TypeTag: coin.Object.TypeTag}
		e.env.RecordCreated(obj)
		results = append(results, Value{IsObject: true, Object: obj})
	}
	return results, nil
}

func (e *Executor) runMergeCoins(c *ptb.MergeCoins) ([]Value, error) {
	dest, err := e.resolve(c.Destination)
	if err != nil {
		return nil, err
	}
	if !dest.IsObject {
		return nil, errs.New(errs.Abort, "MergeCoins: destination is not an object")
	}
	e.env.RecordMutated(dest.Object)

	for _, src := range c.Sources {
		v, err := e.resolve(src)
		if err != nil {
			return nil, err
		}
		if !v.IsObject {
			return nil, errs.New(errs.Abort, "MergeCoins: source is not an object")
		}
		e.env.RecordDeleted(v.Object.ID)
	}
	return nil, nil
}

func (e *Executor) runTransferObjects(c *ptb.TransferObjects) ([]Value, error) {
	recipient, err := e.resolve(c.Address)
	if err != nil {
		return nil, err
	}
	recipientAddr := string(recipient.Pure)
	if recipient.IsObject {
		recipientAddr = recipient.Object.ID
	}

	for _, objArg := range c.Objects {
		v, err := e.resolve(objArg)
		if err != nil {
			return nil, err
		}
		if !v.IsObject {
			return nil, errs.New(errs.Abort, "TransferObjects: argument is not an object")
		}
		e.env.RecordTransferred(v.Object.ID, recipientAddr)
	}
	return nil, nil
}

func (e *Executor) runMakeMoveVec(c *ptb.MakeMoveVec) ([]Value, error) {
	var out []byte
	for _, el := range c.Elements {
		v, err := e.resolve(el)
		if err != nil {
			return nil, err
		}
		if v.IsObject {
			out = append(out, v.Object.Bytes...)
		} else {
			out = append(out, v.Pure...)
		}
	}
	return []Value{{IsObject: false, Pure: out}}, nil
}

func (e *Executor) runPublish(c *ptb.Publish) ([]Value, error) {
	newID := e.env.NewObjectID()
	upgradeCap := ObjectRef{ID: newID, TypeTag: "0x2::package::UpgradeCap"}
	e.env.RecordCreated(upgradeCap)
	return []Value{{IsObject: true, Object: upgradeCap}}, nil
}

func (e *Executor) runUpgrade(c *ptb.Upgrade) ([]Value, error) {
	ticket, err := e.resolve(c.Ticket)
	if err != nil {
		return nil, err
	}
	if ticket.IsObject {
		e.env.RecordDeleted(ticket.Object.ID)
	}
	newID := e.env.NewObjectID()
	receipt := ObjectRef{ID: newID, TypeTag: "0x2::package::UpgradeReceipt"}
	e.env.RecordCreated(receipt)
	return []Value{{IsObject: true, Object: receipt}}, nil
}
