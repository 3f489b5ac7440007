// Package accel defines the compute backend capability interface used by the
// cell and proof pipeline: batched field arithmetic, finite-field FFTs and
// multi-scalar multiplication. A CPU reference implementation is always
// available. Accelerated backends (GPU or otherwise) register a probe and are
// acquired explicitly by the caller; a probe reporting ErrUnavailable is a
// normal routing outcome that sends the pipeline down the CPU path, not an
// error.
//
// Every backend must produce results bit-for-bit identical to the CPU
// reference for every capability operation. A failure during an operation on
// an acquired backend is unrecoverable for that call: no partial results are
// valid and the pipeline does not retry on the CPU mid-flight.
//
// A Backend is not safe for concurrent use from multiple goroutines. Callers
// needing parallelism must serialize access or acquire one backend per
// goroutine.
package accel

import (
	"errors"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/eth2030/blobkzg/log"
)

// Backend errors.
var (
	// ErrUnavailable signals that no accelerated backend can be acquired.
	// Callers treat this as a routing signal, never as a failure.
	ErrUnavailable = errors.New("accel: accelerator unavailable")

	ErrLengthMismatch = errors.New("accel: input and output lengths differ")
	ErrNotPowerOfTwo  = errors.New("accel: transform length is not a power of two")
	ErrBadRootsTable  = errors.New("accel: roots table does not cover the transform length")
)

// Backend is the capability set a compute backend provides. It owns whatever
// backend-private resources it needs (device handle, compiled kernels);
// Close releases them and is safe to call more than once.
//
// FFT interprets roots as the full expanded root-of-unity table of the owning
// trusted setup (domain size + 1 entries, the last being the wrap-around
// sentinel) and samples it at stride (len(roots)-1)/len(in), so transforms
// shorter than the native domain reuse the same table. For an inverse
// transform the caller supplies the reverse-direction table and the backend
// additionally scales by 1/n. out and in must not alias.
type Backend interface {
	// Name identifies the backend ("cpu", "metal", ...).
	Name() string

	// FrAddBatch computes out[i] = a[i] + b[i] over the scalar field.
	FrAddBatch(out, a, b []fr.Element) error

	// FrMulBatch computes out[i] = a[i] * b[i] over the scalar field.
	FrMulBatch(out, a, b []fr.Element) error

	// FFT performs a forward or inverse finite-field FFT of power-of-two
	// length using the supplied root table.
	FFT(out, in []fr.Element, roots []fr.Element, inverse bool) error

	// MSM computes the multi-scalar multiplication sum(scalars[i] *
	// points[i]). An empty input yields the group identity.
	MSM(points []bls12381.G1Affine, scalars []fr.Element) (bls12381.G1Affine, error)

	// Close releases backend resources. Safe on an already-closed backend.
	Close() error
}

// acceleratorProbe is the registered accelerated backend factory, if any.
var acceleratorProbe func() (Backend, error)

// RegisterAccelerator installs the probe for an accelerated backend. At most
// one accelerator is registered per process; registration happens from the
// backend package's init and is not synchronized.
func RegisterAccelerator(probe func() (Backend, error)) {
	acceleratorProbe = probe
}

// New probes for an accelerated backend and returns a usable handle, or
// ErrUnavailable when none is registered or the probe fails. Unavailability
// is the expected outcome on machines without an accelerator.
func New() (Backend, error) {
	if acceleratorProbe == nil {
		return nil, ErrUnavailable
	}
	b, err := acceleratorProbe()
	if err != nil {
		log.Default().Module("accel").Debug("accelerator probe failed", "err", err)
		return nil, ErrUnavailable
	}
	return b, nil
}

// Acquire returns an accelerated backend when one is available and the CPU
// reference otherwise. The routing decision is made once; callers keep the
// returned backend for the whole pipeline invocation.
func Acquire() Backend {
	b, err := New()
	if err != nil {
		return CPU()
	}
	log.Default().Module("accel").Debug("using accelerated backend", "backend", b.Name())
	return b
}

// Release closes a backend, tolerating nil. Releasing the CPU reference is a
// no-op.
func Release(b Backend) {
	if b != nil {
		_ = b.Close()
	}
}
