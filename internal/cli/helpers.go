package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kubev2v/cost-estimator/pkg/cost"
	"github.com/kubev2v/cost-estimator/pkg/operation"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"sigs.k8s.io/yaml"
)

const (
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat}
)

// OperationOptions describe the operation a command works on.
type OperationOptions struct {
	Kind            string
	ContractAddress string
	Contract        string
	Function        string
}

func (o *OperationOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Kind, "kind", "k", o.Kind, fmt.Sprintf("Operation kind. One of: (%s).", strings.Join(operation.Kinds, ", ")))
	fs.StringVar(&o.ContractAddress, "contract-address", o.ContractAddress, "Address of the contract, for contract calls")
	fs.StringVar(&o.Contract, "contract", o.Contract, "Contract name, or address.name")
	fs.StringVar(&o.Function, "function", o.Function, "Function name, for contract calls")
}

func (o *OperationOptions) Validate() error {
	if o.Kind == "" {
		return fmt.Errorf("operation kind is required")
	}
	if !funk.ContainsString(operation.Kinds, o.Kind) {
		return fmt.Errorf("operation kind must be one of %s", strings.Join(operation.Kinds, ", "))
	}
	_, err := o.Operation()
	return err
}

func (o *OperationOptions) Operation() (operation.Operation, error) {
	contract := o.Contract
	if o.ContractAddress != "" && contract != "" {
		contract = o.ContractAddress + "." + contract
	}
	return operation.Parse(o.Kind, contract, o.Function)
}

func validateOutput(output string) error {
	if len(output) > 0 && !funk.Contains(legalOutputTypes, output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

func printOutput(w io.Writer, output string, v interface{}) error {
	var (
		marshalled []byte
		err        error
	)
	switch output {
	case yamlFormat:
		marshalled, err = yaml.Marshal(v)
	default:
		marshalled, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshalling output: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", strings.TrimSuffix(string(marshalled), "\n"))
	return err
}

func costByName(v cost.Vector) map[string]uint64 {
	m := make(map[string]uint64, len(cost.Dimensions()))
	for _, dim := range cost.Dimensions() {
		m[dim.String()] = v.Get(dim)
	}
	return m
}
