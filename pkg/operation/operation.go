// Package operation describes the operations whose cost is estimated and
// maps each of them onto an estimation class.
//
// The set of operation kinds is closed: every kind is listed in Classify so
// that a new kind can never silently share statistics with an unrelated one.
package operation

import (
	"fmt"
	"strings"
)

type Operation interface {
	isOperation()
}

// Classifier maps an operation onto its estimation class descriptor.
type Classifier func(op Operation) string

type TokenTransfer struct{}

type ContractCall struct {
	ContractAddress string
	ContractName    string
	FunctionName    string
}

type SmartContract struct {
	ContractName string
}

type PoisonMicroblock struct{}

type Coinbase struct{}

func (TokenTransfer) isOperation()    {}
func (ContractCall) isOperation()     {}
func (SmartContract) isOperation()    {}
func (PoisonMicroblock) isOperation() {}
func (Coinbase) isOperation()         {}

// Classify returns the estimation class of op. The descriptors are persisted
// as part of estimate keys and must stay stable across releases.
func Classify(op Operation) string {
	switch o := op.(type) {
	case TokenTransfer, *TokenTransfer:
		return "stx-transfer"
	case ContractCall:
		return fmt.Sprintf("cc:%s.%s", o.ContractName, o.FunctionName)
	case *ContractCall:
		if o == nil {
			panic(fmt.Sprintf("operation: cannot classify nil %T", op))
		}
		return fmt.Sprintf("cc:%s.%s", o.ContractName, o.FunctionName)
	case SmartContract, *SmartContract:
		return "contract-publish"
	case PoisonMicroblock, *PoisonMicroblock:
		return "poison-ublock"
	case Coinbase, *Coinbase:
		return "coinbase"
	default:
		panic(fmt.Sprintf("operation: cannot classify %T", op))
	}
}

const (
	KindTransfer         = "transfer"
	KindContractCall     = "contract-call"
	KindContractPublish  = "contract-publish"
	KindPoisonMicroblock = "poison-microblock"
	KindCoinbase         = "coinbase"
)

var Kinds = []string{KindTransfer, KindContractCall, KindContractPublish, KindPoisonMicroblock, KindCoinbase}

// Parse builds an operation from its kind name. Contract calls need a
// contract and a function name, and accept "address.name" as contract.
func Parse(kind, contract, function string) (Operation, error) {
	switch kind {
	case KindTransfer:
		return TokenTransfer{}, nil
	case KindContractCall:
		if contract == "" || function == "" {
			return nil, fmt.Errorf("%s requires a contract and a function", kind)
		}
		cc := ContractCall{ContractName: contract, FunctionName: function}
		if i := strings.LastIndex(contract, "."); i > 0 {
			cc.ContractAddress = contract[:i]
			cc.ContractName = contract[i+1:]
		}
		if cc.ContractName == "" {
			return nil, fmt.Errorf("invalid contract identifier %q", contract)
		}
		return cc, nil
	case KindContractPublish:
		return SmartContract{ContractName: contract}, nil
	case KindPoisonMicroblock:
		return PoisonMicroblock{}, nil
	case KindCoinbase:
		return Coinbase{}, nil
	default:
		return nil, fmt.Errorf("unknown operation kind %q, must be one of %s", kind, strings.Join(Kinds, ", "))
	}
}
