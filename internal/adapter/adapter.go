// Package adapter prices Yearn-style vault shares against a USD quote unit.
//
// An Adapter is configured once, with three token identities and the decimal
// precisions discovered from the chain, and serves read-only conversions in
// exactly two directions: vault share to quote unit and back. The underlying
// asset is assumed pegged 1:1 to the quote unit; that assumption is not
// verified at query time.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/fixedpoint"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/observability"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/vault"
)

// Adapter converts between a vault share token and a USD quote unit using the
// vault's live per-share rate. All configuration state is write-once; every
// conversion request is independent and safe to serve concurrently.
type Adapter struct {
	name       string
	vaultToken common.Address
	asset      common.Address
	quoteUnit  common.Address

	reader vault.Reader

	feedDecimals  int
	rateDecimals  int
	quoteDecimals int
	scale         fixedpoint.Scale

	descOnce sync.Once
	desc     string

	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  observability.Tracer
}

// Config holds adapter construction inputs.
type Config struct {
	// Name is the registry label used in logs and metrics. Optional;
	// defaults to the vault address.
	Name string

	// VaultToken, Asset and QuoteUnit are the three required identities.
	VaultToken common.Address
	Asset      common.Address
	QuoteUnit  common.Address

	// Reader is the vault collaborator: rate, decimals, underlying asset,
	// display symbol.
	Reader vault.Reader

	// AssetReader reports the underlying asset's precision, which is the
	// precision the rate itself is expressed in.
	AssetReader vault.TokenReader

	// QuoteDecimals is the quote unit's precision (e.g. 18 for USD18).
	QuoteDecimals int

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  observability.Tracer
}

// New builds an adapter, discovering and validating all precisions and
// cross-checking the vault's underlying asset. Any failure here is terminal:
// a misconfigured adapter must never be constructed with guessed values.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	var zero common.Address
	if cfg.VaultToken == zero {
		return nil, fmt.Errorf("%w: vault token address is required", ErrInvalidConfiguration)
	}
	if cfg.Asset == zero {
		return nil, fmt.Errorf("%w: asset address is required", ErrInvalidConfiguration)
	}
	if cfg.QuoteUnit == zero {
		return nil, fmt.Errorf("%w: quote unit address is required", ErrInvalidConfiguration)
	}
	if cfg.Reader == nil {
		return nil, fmt.Errorf("%w: vault reader is required", ErrInvalidConfiguration)
	}
	if cfg.AssetReader == nil {
		return nil, fmt.Errorf("%w: asset reader is required", ErrInvalidConfiguration)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoopTracer()
	}
	if cfg.Name == "" {
		cfg.Name = cfg.VaultToken.Hex()
	}

	// The vault must report an underlying asset, and it must be the asset
	// this adapter was configured to trust.
	reported, err := cfg.Reader.UnderlyingAsset(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnverifiable, err)
	}
	if reported != cfg.Asset {
		return nil, fmt.Errorf("%w: vault reports %s, configured %s",
			ErrUnverifiable, reported.Hex(), cfg.Asset.Hex())
	}

	feedDecimals, err := discoverDecimals(ctx, cfg.Reader, "vault")
	if err != nil {
		return nil, err
	}
	rateDecimals, err := discoverDecimals(ctx, cfg.AssetReader, "asset")
	if err != nil {
		return nil, err
	}
	if err := fixedpoint.CheckDecimals(cfg.QuoteDecimals); err != nil {
		return nil, fmt.Errorf("%w: quote unit reports %d", ErrUnsupportedDecimals, cfg.QuoteDecimals)
	}

	scale, err := fixedpoint.ResolveScale(feedDecimals, cfg.QuoteDecimals, rateDecimals)
	if err != nil {
		return nil, fmt.Errorf("%w: precisions %d/%d/%d not representable",
			ErrUnsupportedDecimals, feedDecimals, cfg.QuoteDecimals, rateDecimals)
	}

	return &Adapter{
		name:          cfg.Name,
		vaultToken:    cfg.VaultToken,
		asset:         cfg.Asset,
		quoteUnit:     cfg.QuoteUnit,
		reader:        cfg.Reader,
		feedDecimals:  feedDecimals,
		rateDecimals:  rateDecimals,
		quoteDecimals: cfg.QuoteDecimals,
		scale:         scale,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
	}, nil
}

func discoverDecimals(ctx context.Context, r vault.TokenReader, role string) (int, error) {
	d, err := r.Decimals(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %s decimals unreadable: %v", ErrUnsupportedDecimals, role, err)
	}
	if err := fixedpoint.CheckDecimals(d); err != nil {
		return 0, fmt.Errorf("%w: %s reports %d", ErrUnsupportedDecimals, role, d)
	}
	return d, nil
}

// Name returns the adapter's registry label.
func (a *Adapter) Name() string {
	return a.name
}

// VaultToken returns the vault share token identity.
func (a *Adapter) VaultToken() common.Address {
	return a.vaultToken
}

// QuoteUnit returns the quote unit identity.
func (a *Adapter) QuoteUnit() common.Address {
	return a.quoteUnit
}

// FeedDecimals returns the vault token's precision.
func (a *Adapter) FeedDecimals() int {
	return a.feedDecimals
}

// QuoteDecimals returns the quote unit's precision.
func (a *Adapter) QuoteDecimals() int {
	return a.quoteDecimals
}

// Supports reports whether base/quote is one of the two supported ordered
// pairs. Identity pairs are not special-cased.
func (a *Adapter) Supports(base, quote common.Address) bool {
	if base == a.vaultToken && quote == a.quoteUnit {
		return true
	}
	return base == a.quoteUnit && quote == a.vaultToken
}

// Quote converts amount from base units into quote units at the vault's
// current per-share rate. The rate is fetched fresh; nothing is cached.
func (a *Adapter) Quote(ctx context.Context, amount *uint256.Int, base, quote common.Address) (*uint256.Int, error) {
	start := time.Now()
	ctx, span := a.tracer.StartSpan(ctx, "Adapter.Quote",
		observability.WithAttributes(
			attribute.String("adapter", a.name),
			attribute.String("base", base.Hex()),
			attribute.String("quote", quote.Hex()),
		),
	)
	defer span.End()

	out, err := a.quote(ctx, amount, base, quote)

	if a.metrics != nil {
		a.metrics.RecordQuote(ctx, a.name, time.Since(start), err == nil)
		if err != nil {
			a.metrics.RecordQuoteError(ctx, a.name, conditionName(err))
		}
	}
	if err != nil {
		span.NoticeError(err)
		return nil, err
	}

	if a.logger != nil {
		a.logger.LogInfo(ctx, "served quote",
			"adapter", a.name,
			"base", base.Hex(),
			"quote", quote.Hex(),
			"amount_in", amount.Dec(),
			"amount_out", out.Dec(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return out, nil
}

func (a *Adapter) quote(ctx context.Context, amount *uint256.Int, base, quote common.Address) (*uint256.Int, error) {
	var inverse bool
	switch {
	case base == a.vaultToken && quote == a.quoteUnit:
		inverse = false
	case base == a.quoteUnit && quote == a.vaultToken:
		inverse = true
	default:
		return nil, fmt.Errorf("%w: base %s, quote %s", ErrPairNotSupported, base.Hex(), quote.Hex())
	}

	fetchStart := time.Now()
	rate, err := a.reader.Rate(ctx)
	if a.metrics != nil {
		a.metrics.RecordRateFetch(ctx, a.vaultToken.Hex(), time.Since(fetchStart), err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}

	if inverse {
		// The converter rejects a zero rate before any other work, as a
		// distinct zero-price condition: the rate is about to divide.
		return fixedpoint.Convert(amount, rate, a.scale, true)
	}
	if rate.IsZero() {
		return nil, fmt.Errorf("%w: upstream rate is zero", ErrInvalidAnswer)
	}
	return fixedpoint.Convert(amount, rate, a.scale, false)
}

// BidAsk returns the bid and ask amounts for a single conversion. This
// adapter has no spread: the conversion runs exactly once and the result is
// returned for both sides, so the two values are always identical.
func (a *Adapter) BidAsk(ctx context.Context, amount *uint256.Int, base, quote common.Address) (bid, ask *uint256.Int, err error) {
	out, err := a.Quote(ctx, amount, base, quote)
	if err != nil {
		return nil, nil, err
	}
	return out, out.Clone(), nil
}

// Description returns a human-readable label for this adapter, built from the
// vault's display symbol. Cosmetic only: a failed or over-budget symbol read
// falls back to the vault address and never fails the adapter. The label is
// memoized; concurrent first calls race safely through sync.Once.
func (a *Adapter) Description(ctx context.Context) string {
	a.descOnce.Do(func() {
		sym, err := a.reader.DisplaySymbol(ctx)
		if err != nil || sym == "" {
			if a.logger != nil {
				a.logger.LogWarn(ctx, "display symbol unavailable, using address",
					"adapter", a.name, "error", err)
			}
			sym = a.vaultToken.Hex()
		}
		a.desc = fmt.Sprintf("%s / USD", sym)
	})
	return a.desc
}

// conditionName maps an error to its stable metric label.
func conditionName(err error) string {
	switch {
	case errors.Is(err, ErrPairNotSupported):
		return "pair_not_supported"
	case errors.Is(err, ErrInvalidAnswer):
		return "invalid_answer"
	case errors.Is(err, fixedpoint.ErrZeroPrice):
		return "zero_price"
	case errors.Is(err, fixedpoint.ErrOverflow):
		return "overflow"
	case errors.Is(err, ErrUnsupportedDecimals):
		return "unsupported_decimals"
	case errors.Is(err, ErrUnverifiable):
		return "unverifiable"
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	default:
		return "internal"
	}
}
