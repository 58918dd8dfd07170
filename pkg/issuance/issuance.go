// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-certslot.
//
// go-certslot is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package issuance sequences certificate issuance across slots.
//
// Every certificate moves through Requested, Built, Signed, an optional
// Transferred and finally Stored. A failure stops that certificate at the
// stage it could not reach and is reported as an *IssuanceError; other
// certificates in the same batch are unaffected. The authority key is only
// ever used inside its own slot. Subject keys held by other slots are
// routed into the authority slot as public keys, and signed certificates
// may be delivered to another slot as public artifacts.
package issuance

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"math/big"
	"time"

	"github.com/jeremyhahn/go-certslot/pkg/adapters/logger"
	"github.com/jeremyhahn/go-certslot/pkg/certbuilder"
	"github.com/jeremyhahn/go-certslot/pkg/correlation"
	"github.com/jeremyhahn/go-certslot/pkg/dn"
	"github.com/jeremyhahn/go-certslot/pkg/metrics"
	"github.com/jeremyhahn/go-certslot/pkg/slot"
	"github.com/jeremyhahn/go-certslot/pkg/storage"
	"github.com/jeremyhahn/go-certslot/pkg/transfer"
	"github.com/jeremyhahn/go-certslot/pkg/types"
	"github.com/jeremyhahn/go-certslot/pkg/validation"
)

// Request describes one certificate to issue.
type Request struct {
	// ID identifies the request in logs and errors. Generated when empty.
	ID string

	// Serial is a big-endian serial number. Random when empty.
	Serial []byte

	// Subject is the subject name.
	Subject dn.DistinguishedName

	NotBefore time.Time
	NotAfter  time.Time

	// KeyUsage defaults to digitalSignature.
	KeyUsage x509.KeyUsage

	// SubjectKey is the key being certified, a *slot.KeyPairHandle or a
	// *slot.PublicKey. When nil, GenerateKey must be set.
	SubjectKey slot.Artifact

	// GenerateKey has the orchestrator create the subject key as the first
	// step of the request.
	GenerateKey *KeySpec

	// SubjectSlot owns SubjectKey when it is not the authority slot.
	SubjectSlot *slot.Slot

	// DeliverTo receives the signed certificate. Optional.
	DeliverTo *slot.Slot

	// Label names the certificate in the authority slot. Defaults to
	// cert-<serial>. Delivered certificates get a fresh label.
	Label string
}

// KeySpec describes a subject key to generate.
type KeySpec struct {
	// Slot creates and keeps the key.
	Slot *slot.Slot

	// Label names the key. A fresh label is drawn per attempt when empty.
	Label string

	// Algorithm defaults to the orchestrator algorithm.
	Algorithm types.Algorithm

	// Persist stores the key in the slot so it survives a restart.
	Persist bool
}

// Outcome is the result of one request.
type Outcome struct {
	// RequestID identifies the request.
	RequestID string

	// Stage is the last stage reached.
	Stage Stage

	// Serial is set once the certificate is built.
	Serial *big.Int

	// SubjectKey is the key generated for the request, if any.
	SubjectKey *slot.KeyPairHandle

	// Certificate is the stored certificate, held by SlotID. It is also set
	// when the slot stored it but the sink did not.
	Certificate *slot.Certificate
	SlotID      string

	// Err is an *IssuanceError when the request failed.
	Err error
}

// OK reports whether the certificate was stored.
func (o *Outcome) OK() bool {
	return o.Err == nil && o.Stage == StageStored
}

// Orchestrator issues certificates. It keeps no state between requests and
// is safe for concurrent use.
type Orchestrator struct {
	sink        Sink
	logger      logger.Logger
	algorithm   types.Algorithm
	maxRetries  int
	backoff     time.Duration
	concurrency int
	builder     *certbuilder.Builder
}

// New returns an Orchestrator configured by cfg.
func New(cfg *Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		sink:        cfg.Sink,
		logger:      cfg.Logger,
		algorithm:   cfg.Algorithm,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.RetryBackoff,
		concurrency: cfg.Concurrency,
		builder:     certbuilder.NewBuilder(certbuilder.WithClock(cfg.Clock), certbuilder.WithRand(cfg.Rand)),
	}
	if o.logger == nil {
		o.logger = logger.NewNopLogger()
	}
	if o.algorithm == "" {
		o.algorithm = types.DefaultAlgorithm
	}
	if o.backoff == 0 {
		o.backoff = DefaultRetryBackoff
	}
	if o.concurrency == 0 {
		o.concurrency = DefaultConcurrency
	}
	return o, nil
}

// Issue runs one request against ca. The returned Outcome is never nil.
func (o *Orchestrator) Issue(ctx context.Context, ca *Authority, req *Request) *Outcome {
	id := ""
	if req != nil {
		id = req.ID
	}
	if id == "" {
		id = correlation.NewID()
	}
	return o.issue(ctx, ca, req, id)
}

func (o *Orchestrator) issue(ctx context.Context, ca *Authority, req *Request, id string) *Outcome {
	ctx = correlation.WithRequestID(ctx, id)
	out := &Outcome{RequestID: id, Stage: StageRequested}
	start := time.Now()

	if ca == nil {
		return o.fail(ctx, out, StageBuilt, ErrAuthorityRequired)
	}
	if err := ctx.Err(); err != nil {
		return o.fail(ctx, out, StageBuilt, err)
	}
	if req == nil || (req.SubjectKey == nil && req.GenerateKey == nil) {
		return o.fail(ctx, out, StageBuilt, fmt.Errorf("%w: subject key is required", ErrInvalidRequest))
	}

	// Built
	subject, subjectSlot := req.SubjectKey, req.SubjectSlot
	if subject == nil {
		key, err := o.generateSubjectKey(ctx, req.GenerateKey)
		if err != nil {
			return o.fail(ctx, out, StageBuilt, err)
		}
		subject, subjectSlot = key, req.GenerateKey.Slot
		out.SubjectKey = key
	}
	subjectKey, err := o.subjectPublicKey(ctx, ca, subject, subjectSlot)
	if err != nil {
		return o.fail(ctx, out, StageBuilt, err)
	}
	tmpl, err := o.builder.Build(&certbuilder.Request{
		Serial:         req.Serial,
		Issuer:         ca.name,
		Subject:        req.Subject,
		NotBefore:      req.NotBefore,
		NotAfter:       req.NotAfter,
		SubjectKey:     subjectKey,
		KeyUsage:       req.KeyUsage,
		AuthorityKeyID: ca.cert.X509().SubjectKeyId,
	})
	if err != nil {
		return o.fail(ctx, out, StageBuilt, err)
	}
	out.Serial = tmpl.SerialNumber()
	o.advance(ctx, out, StageBuilt)

	// Signed
	cert, err := retry(ctx, o, StageSigned, func() (*slot.Certificate, error) {
		return ca.signer.Sign(ctx, tmpl, ca.key)
	})
	if err != nil {
		return o.fail(ctx, out, StageSigned, err)
	}
	o.advance(ctx, out, StageSigned)

	// Transferred
	holder := ca.slot
	stored := false
	if req.DeliverTo != nil {
		moved, err := retry(ctx, o, StageTransferred, func() (slot.Artifact, error) {
			return transfer.Transfer(ctx, cert, ca.slot, req.DeliverTo, ca.Algorithm())
		})
		if err != nil {
			return o.fail(ctx, out, StageTransferred, err)
		}
		cert = moved.(*slot.Certificate)
		holder = req.DeliverTo
		stored = true
		o.advance(ctx, out, StageTransferred)
	}

	// Stored
	if !stored {
		label := req.Label
		if label == "" {
			label = cert.Label()
		}
		cert, err = holder.StoreCertificate(ctx, label, cert.DER())
		if err != nil {
			return o.fail(ctx, out, StageStored, err)
		}
	}
	out.Certificate = cert
	out.SlotID = holder.ID()
	if o.sink != nil {
		if err := o.sink.StoreCertificate(ctx, holder.ID(), cert.X509()); err != nil {
			return o.fail(ctx, out, StageStored, err)
		}
	}
	o.advance(ctx, out, StageStored)

	metrics.RecordIssued(ca.slot.ID())
	metrics.RecordOperation(metrics.OpIssue, ca.slot.Type().String(), metrics.StatusSuccess, time.Since(start).Seconds())
	o.logger.InfoContext(ctx, "certificate issued",
		logger.Serial(storage.SerialHex(out.Serial)),
		logger.String("subject", validation.SanitizeForLog(req.Subject.String())),
		logger.String("issuer", ca.slot.ID()),
		logger.Slot(holder.ID()),
		logger.Label(cert.Label()),
		logger.Duration("duration", time.Since(start)))
	return out
}

// generateSubjectKey creates the subject key described by spec. Provider
// timeouts are retried like any other provider call.
func (o *Orchestrator) generateSubjectKey(ctx context.Context, spec *KeySpec) (*slot.KeyPairHandle, error) {
	if spec.Slot == nil {
		return nil, fmt.Errorf("%w: key generation needs a slot", ErrInvalidRequest)
	}
	alg := spec.Algorithm
	if alg == "" {
		alg = o.algorithm
	}

	key, err := retry(ctx, o, StageBuilt, func() (*slot.KeyPairHandle, error) {
		label := spec.Label
		if label == "" {
			label = spec.Slot.NewLabel("key")
		}
		return spec.Slot.GenerateKeyPair(ctx, label, alg)
	})
	if err != nil {
		return nil, fmt.Errorf("generate subject key: %w", err)
	}
	if spec.Persist {
		_, err := retry(ctx, o, StageBuilt, func() (struct{}, error) {
			return struct{}{}, spec.Slot.PersistKey(ctx, key)
		})
		if err != nil {
			return nil, fmt.Errorf("persist subject key: %w", err)
		}
	}
	o.logger.DebugContext(ctx, "subject key generated",
		logger.String("in", spec.Slot.ID()),
		logger.Label(key.Label()))
	return key, nil
}

// subjectPublicKey returns the public key to certify. A key owned by
// another slot is routed into the authority slot first.
func (o *Orchestrator) subjectPublicKey(ctx context.Context, ca *Authority, subject slot.Artifact, src *slot.Slot) (crypto.PublicKey, error) {
	var (
		pub crypto.PublicKey
		alg types.Algorithm
	)
	switch k := subject.(type) {
	case *slot.KeyPairHandle:
		pub, alg = k.PublicKey(), k.Algorithm()
	case *slot.PublicKey:
		pub, alg = k.Key(), k.Algorithm()
	default:
		return nil, fmt.Errorf("%w: subject key is a %s", ErrInvalidRequest, subject.Kind())
	}
	if ca.slot.Owns(subject) {
		return pub, nil
	}

	if src == nil || !src.Owns(subject) {
		return nil, fmt.Errorf("%w: subject key %s belongs to slot %s, which the request does not supply",
			ErrInvalidRequest, subject.Label(), subject.SlotID())
	}

	artifact := subject
	if h, ok := artifact.(*slot.KeyPairHandle); ok {
		exported, err := retry(ctx, o, StageBuilt, func() (*slot.PublicKey, error) {
			return src.ExportPublicKey(ctx, h)
		})
		if err != nil {
			return nil, err
		}
		artifact = exported
	}

	routed, err := retry(ctx, o, StageBuilt, func() (slot.Artifact, error) {
		return transfer.Transfer(ctx, artifact, src, ca.slot, alg)
	})
	if err != nil {
		return nil, fmt.Errorf("route subject key: %w", err)
	}
	o.logger.DebugContext(ctx, "subject key routed",
		logger.String("from", src.ID()),
		logger.String("to", ca.slot.ID()),
		logger.Label(routed.Label()))
	return routed.(*slot.PublicKey).Key(), nil
}

func (o *Orchestrator) advance(ctx context.Context, out *Outcome, stage Stage) {
	out.Stage = stage
	metrics.RecordStage(stage.String(), metrics.StatusSuccess)
	o.logger.DebugContext(ctx, "stage reached", logger.Stage(stage.String()))
}

func (o *Orchestrator) fail(ctx context.Context, out *Outcome, stage Stage, err error) *Outcome {
	ierr := &IssuanceError{RequestID: out.RequestID, Stage: stage, Err: err}
	fields := []logger.Field{logger.Stage(stage.String()), logger.Error(err)}
	if out.Serial != nil {
		ierr.Serial = storage.SerialHex(out.Serial)
		fields = append(fields, logger.Serial(ierr.Serial))
	}
	if out.Certificate != nil {
		ierr.Slot, ierr.Label = out.SlotID, out.Certificate.Label()
		fields = append(fields, logger.String("held_by", ierr.Slot), logger.Label(ierr.Label))
	}
	out.Err = ierr

	metrics.RecordStage(stage.String(), metrics.StatusError)
	if IsPolicyViolation(err) {
		metrics.RecordError(metrics.OpIssue, "issuance", "policy_violation")
		o.logger.ErrorContext(ctx, "policy violation: issuance aborted", fields...)
	} else {
		o.logger.WarnContext(ctx, "certificate issuance failed", fields...)
	}
	return out
}

// retry runs fn until it succeeds, fails with anything but a provider
// timeout, or runs out of retries. The delay doubles after each attempt.
func retry[T any](ctx context.Context, o *Orchestrator, stage Stage, fn func() (T, error)) (T, error) {
	var zero T
	delay := o.backoff
	for attempt := 0; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) || attempt >= o.maxRetries {
			return zero, err
		}
		o.logger.WarnContext(ctx, "provider timeout, retrying",
			logger.Stage(stage.String()),
			logger.Int("attempt", attempt+1),
			logger.Duration("backoff", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
