// Package toggle decides which of two provisioning parameter slots carries a
// new lambda version digest.
//
// CloudFormation cannot update a lambda version in place. The product template
// reads whichever of LambdaVersionSHA256 and LambdaVersionSHA256Update is
// non-empty, so alternating the slot that holds the digest forces a new version
// without an in-place update.
package toggle

// Output keys written to the stack and read back on the next deploy.
const (
	OutputVersionHash       = "LambdaVersionHash"
	OutputVersionHashUpdate = "LambdaVersionHashUpdate"
)

// Slot identifies one of the two version parameters.
type Slot int

const (
	SlotNone Slot = iota
	SlotPrimary
	SlotUpdate
)

func (s Slot) String() string {
	switch s {
	case SlotPrimary:
		return "primary"
	case SlotUpdate:
		return "update"
	default:
		return "none"
	}
}

// State is the deployed state observed on the stack.
// An empty PriorDigest means no primary digest is known.
type State struct {
	FirstDeploy bool
	PriorDigest string
	Active      Slot
}

// Decision is the slot assignment for a single function and run.
type Decision struct {
	Branch        Branch
	DigestChanged bool
	Target        Slot
	Digest        string
	OutputKey     string // empty when no version output is emitted
}

// PrimaryValue returns the value for the LambdaVersionSHA256 parameter.
func (d Decision) PrimaryValue() string {
	if d.Target == SlotPrimary {
		return d.Digest
	}
	return ""
}

// UpdateValue returns the value for the LambdaVersionSHA256Update parameter.
func (d Decision) UpdateValue() string {
	if d.Target == SlotUpdate {
		return d.Digest
	}
	return ""
}

// Branch is the toggle state machine transition taken for a run.
type Branch string

const (
	// BranchUnchanged redeploys identical bytes: both slots cleared, no output.
	BranchUnchanged Branch = "unchanged"
	// BranchPrimary writes the primary slot. Taken on first deploy and whenever
	// no primary digest is known, including when the update slot is active.
	BranchPrimary Branch = "primary"
	// BranchUpdate toggles from a known primary digest to the update slot.
	BranchUpdate Branch = "update"
)

var transitions = map[Branch]func(digest string) Decision{
	BranchUnchanged: func(digest string) Decision {
		return Decision{Branch: BranchUnchanged, Target: SlotNone, Digest: digest}
	},
	BranchPrimary: func(digest string) Decision {
		return Decision{
			Branch:        BranchPrimary,
			DigestChanged: true,
			Target:        SlotPrimary,
			Digest:        digest,
			OutputKey:     OutputVersionHash,
		}
	},
	BranchUpdate: func(digest string) Decision {
		return Decision{
			Branch:        BranchUpdate,
			DigestChanged: true,
			Target:        SlotUpdate,
			Digest:        digest,
			OutputKey:     OutputVersionHashUpdate,
		}
	},
}

// Classify returns the branch for the given state and digest.
func Classify(state State, digest string) Branch {
	switch {
	case state.PriorDigest != "" && state.PriorDigest == digest:
		return BranchUnchanged
	case state.FirstDeploy || state.PriorDigest == "":
		return BranchPrimary
	default:
		return BranchUpdate
	}
}

// Select returns the slot decision for digest given the deployed state.
//
// Only the primary slot's digest is used for comparison. When the update slot
// is active its value is never read back, so the next change always returns to
// the primary slot.
func Select(state State, digest string) Decision {
	return transitions[Classify(state, digest)](digest)
}
