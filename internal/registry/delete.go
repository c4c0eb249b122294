package registry

import (
	"fmt"

	"github.com/mato-framework/mato/internal/ids"
)

// PrepareDelete looks up a local instance's state and spec so the caller
// can invoke spec.Delete(state) with the registry lock released, mirroring
// delete_module_instance's unlock-call-relock sequencing in the original.
func (r *Registry) PrepareDelete(globalID int) (state any, spec ModuleSpec, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.localInstance(globalID)
	if !ok {
		return nil, ModuleSpec{}, fmt.Errorf("mato: no such local instance %d", globalID)
	}
	spec, ok = r.types[inst.typeName]
	if !ok {
		return nil, ModuleSpec{}, fmt.Errorf("mato: module %d has unregistered type %q", globalID, inst.typeName)
	}
	return inst.state, spec, nil
}

// FinalizeDelete removes the instance from the registry after its Delete
// callback has run: subscriptions in both directions are cancelled, any
// descriptor a borrower still holds moves to the dangling list, and the
// channel tables are freed.
func (r *Registry) FinalizeDelete(globalID int) {
	node, local := ids.Split(globalID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tearDownModuleLocked(node, local)
}
