// Package replication validates cluster parameters per replication scheme and
// derives the effective replication factor. Each scheme is one Policy; adding a
// scheme means adding a Policy and registering it.
package replication

import (
	"github.com/cockroachdb/errors"

	"github.com/gautham-bhat-k/meadowlark/errs"
)

// Params is the tuple a Policy validates.
type Params struct {
	PartitionCount  uint64
	NodeCount       uint64
	ServerCount     uint64
	RequestedFactor uint64
}

type Policy interface {
	Scheme() Scheme
	// Factor validates p and returns the effective replication factor.
	Factor(p Params) (uint64, error)
}

var policies = map[Scheme]Policy{}

// Register installs pol for its scheme, replacing any previous policy.
func Register(pol Policy) {
	policies[pol.Scheme()] = pol
}

func init() {
	Register(noReplication{})
	Register(masterSlave{})
	Register(ringPolicy{scheme: Dynamo})
	Register(ringPolicy{scheme: ModC})
}

// Lookup returns the policy for s.
func Lookup(s Scheme) (Policy, error) {
	pol, ok := policies[s]
	if !ok {
		return nil, errors.Wrapf(errs.ErrInvalidReplicationParameters, "scheme %s has no replication policy", s)
	}
	return pol, nil
}

// Derive validates p under scheme s and returns the effective factor. It has no
// side effects.
func Derive(s Scheme, p Params) (uint64, error) {
	pol, err := Lookup(s)
	if err != nil {
		return 0, err
	}
	return pol.Factor(p)
}

type predicate struct {
	ok   bool
	desc string
}

func check(s Scheme, preds ...predicate) error {
	for _, pr := range preds {
		if !pr.ok {
			return errors.Wrapf(errs.ErrInvalidReplicationParameters, "%s: requires %s", s, pr.desc)
		}
	}
	return nil
}

type noReplication struct{}

func (noReplication) Scheme() Scheme { return None }

func (noReplication) Factor(Params) (uint64, error) { return 1, nil }

type masterSlave struct{}

func (masterSlave) Scheme() Scheme { return MasterSlave }

func (masterSlave) Factor(p Params) (uint64, error) {
	err := check(MasterSlave,
		predicate{p.PartitionCount > 0, "partitionCount > 0"},
		predicate{p.NodeCount > 0, "nodeCount > 0"},
		predicate{p.NodeCount >= p.PartitionCount, fmtPred("nodeCount", p.NodeCount, ">=", "partitionCount", p.PartitionCount)},
		predicate{p.ServerCount >= p.RequestedFactor, fmtPred("serverCount", p.ServerCount, ">=", "requestedFactor", p.RequestedFactor)},
	)
	if err != nil {
		return 0, err
	}
	return p.NodeCount / p.PartitionCount, nil
}

// ringPolicy serves DYNAMO and MODC, which share preconditions.
type ringPolicy struct {
	scheme Scheme
}

func (r ringPolicy) Scheme() Scheme { return r.scheme }

func (r ringPolicy) Factor(p Params) (uint64, error) {
	err := check(r.scheme,
		predicate{p.PartitionCount > 0, "partitionCount > 0"},
		predicate{p.NodeCount > 0, "nodeCount > 0"},
		predicate{p.RequestedFactor <= p.NodeCount, fmtPred("requestedFactor", p.RequestedFactor, "<=", "nodeCount", p.NodeCount)},
		predicate{p.ServerCount >= p.RequestedFactor, fmtPred("serverCount", p.ServerCount, ">=", "requestedFactor", p.RequestedFactor)},
	)
	if err != nil {
		return 0, err
	}
	return p.RequestedFactor, nil
}
