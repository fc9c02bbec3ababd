package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/fixedpoint"
)

var (
	vaultAddr = common.HexToAddress("0xdA816459F1AB5631232FE5e97a05BBBb94970c95")
	assetAddr = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	usdAddr   = common.HexToAddress("0x0000000000000000000000000000000000000348")
	otherAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

type fakeVault struct {
	rate       *uint256.Int
	rateErr    error
	decimals   int
	decErr     error
	underlying common.Address
	underErr   error
	symbol     string
	symErr     error
	rateCalls  int
}

func (f *fakeVault) Rate(ctx context.Context) (*uint256.Int, error) {
	f.rateCalls++
	if f.rateErr != nil {
		return nil, f.rateErr
	}
	return f.rate.Clone(), nil
}

func (f *fakeVault) Decimals(ctx context.Context) (int, error) {
	if f.decErr != nil {
		return 0, f.decErr
	}
	return f.decimals, nil
}

func (f *fakeVault) UnderlyingAsset(ctx context.Context) (common.Address, error) {
	if f.underErr != nil {
		return common.Address{}, f.underErr
	}
	return f.underlying, nil
}

func (f *fakeVault) DisplaySymbol(ctx context.Context) (string, error) {
	if f.symErr != nil {
		return "", f.symErr
	}
	return f.symbol, nil
}

type fakeAsset struct {
	decimals int
	decErr   error
}

func (f *fakeAsset) Decimals(ctx context.Context) (int, error) {
	if f.decErr != nil {
		return 0, f.decErr
	}
	return f.decimals, nil
}

func (f *fakeAsset) DisplaySymbol(ctx context.Context) (string, error) {
	return "DAI", nil
}

func newTestVault() *fakeVault {
	return &fakeVault{
		// 1.5 underlying per share, underlying at 6 decimals.
		rate:       uint256.NewInt(1_500_000),
		decimals:   18,
		underlying: assetAddr,
		symbol:     "yvDAI",
	}
}

func newTestConfig(v *fakeVault) Config {
	return Config{
		Name:          "yvdai-usd",
		VaultToken:    vaultAddr,
		Asset:         assetAddr,
		QuoteUnit:     usdAddr,
		Reader:        v,
		AssetReader:   &fakeAsset{decimals: 6},
		QuoteDecimals: 18,
	}
}

func mustAdapter(t *testing.T, cfg Config) *Adapter {
	t.Helper()
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func dec(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := uint256.FromDecimal(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

func TestNewValidatesIdentities(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero vault", func(c *Config) { c.VaultToken = common.Address{} }},
		{"zero asset", func(c *Config) { c.Asset = common.Address{} }},
		{"zero quote unit", func(c *Config) { c.QuoteUnit = common.Address{} }},
		{"nil reader", func(c *Config) { c.Reader = nil }},
		{"nil asset reader", func(c *Config) { c.AssetReader = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(newTestVault())
			tt.mutate(&cfg)
			if _, err := New(context.Background(), cfg); !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("got %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestNewCrossChecksUnderlying(t *testing.T) {
	t.Run("mismatch", func(t *testing.T) {
		v := newTestVault()
		v.underlying = otherAddr
		if _, err := New(context.Background(), newTestConfig(v)); !errors.Is(err, ErrUnverifiable) {
			t.Fatalf("got %v, want ErrUnverifiable", err)
		}
	})
	t.Run("unreadable", func(t *testing.T) {
		v := newTestVault()
		v.underErr = errors.New("execution reverted")
		if _, err := New(context.Background(), newTestConfig(v)); !errors.Is(err, ErrUnverifiable) {
			t.Fatalf("got %v, want ErrUnverifiable", err)
		}
	})
}

func TestNewValidatesDecimals(t *testing.T) {
	t.Run("vault decimals out of range", func(t *testing.T) {
		v := newTestVault()
		v.decimals = 78
		if _, err := New(context.Background(), newTestConfig(v)); !errors.Is(err, ErrUnsupportedDecimals) {
			t.Fatalf("got %v, want ErrUnsupportedDecimals", err)
		}
	})
	t.Run("vault decimals unreadable", func(t *testing.T) {
		v := newTestVault()
		v.decErr = errors.New("execution reverted")
		if _, err := New(context.Background(), newTestConfig(v)); !errors.Is(err, ErrUnsupportedDecimals) {
			t.Fatalf("got %v, want ErrUnsupportedDecimals", err)
		}
	})
	t.Run("asset decimals out of range", func(t *testing.T) {
		cfg := newTestConfig(newTestVault())
		cfg.AssetReader = &fakeAsset{decimals: 100}
		if _, err := New(context.Background(), cfg); !errors.Is(err, ErrUnsupportedDecimals) {
			t.Fatalf("got %v, want ErrUnsupportedDecimals", err)
		}
	})
	t.Run("quote decimals negative", func(t *testing.T) {
		cfg := newTestConfig(newTestVault())
		cfg.QuoteDecimals = -1
		if _, err := New(context.Background(), cfg); !errors.Is(err, ErrUnsupportedDecimals) {
			t.Fatalf("got %v, want ErrUnsupportedDecimals", err)
		}
	})
	t.Run("combined exponent unrepresentable", func(t *testing.T) {
		// quote < rate pulls the gap into the feed exponent: 77+77-1 > 77.
		v := newTestVault()
		v.decimals = 77
		cfg := newTestConfig(v)
		cfg.AssetReader = &fakeAsset{decimals: 77}
		cfg.QuoteDecimals = 1
		if _, err := New(context.Background(), cfg); !errors.Is(err, ErrUnsupportedDecimals) {
			t.Fatalf("got %v, want ErrUnsupportedDecimals", err)
		}
	})
	t.Run("zero decimals rejected", func(t *testing.T) {
		v := newTestVault()
		v.decimals = 0
		if _, err := New(context.Background(), newTestConfig(v)); !errors.Is(err, ErrUnsupportedDecimals) {
			t.Fatalf("got %v, want ErrUnsupportedDecimals", err)
		}
	})
}

func TestQuoteForward(t *testing.T) {
	a := mustAdapter(t, newTestConfig(newTestVault()))

	// 10 shares at 1.5 underlying each, USD pegged 1:1.
	out, err := a.Quote(context.Background(), dec(t, "10000000000000000000"), vaultAddr, usdAddr)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if want := dec(t, "15000000000000000000"); !out.Eq(want) {
		t.Fatalf("got %s, want %s", out.Dec(), want.Dec())
	}
}

func TestQuoteInverse(t *testing.T) {
	a := mustAdapter(t, newTestConfig(newTestVault()))

	out, err := a.Quote(context.Background(), dec(t, "15000000000000000000"), usdAddr, vaultAddr)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if want := dec(t, "10000000000000000000"); !out.Eq(want) {
		t.Fatalf("got %s, want %s", out.Dec(), want.Dec())
	}
}

func TestQuoteUnsupportedPair(t *testing.T) {
	a := mustAdapter(t, newTestConfig(newTestVault()))

	tests := []struct {
		name        string
		base, quote common.Address
	}{
		{"unknown base", otherAddr, usdAddr},
		{"unknown quote", vaultAddr, otherAddr},
		{"vault both sides", vaultAddr, vaultAddr},
		{"quote unit both sides", usdAddr, usdAddr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Quote(context.Background(), uint256.NewInt(1), tt.base, tt.quote)
			if !errors.Is(err, ErrPairNotSupported) {
				t.Fatalf("got %v, want ErrPairNotSupported", err)
			}
			// The rejection must identify both sides of the pair.
			if !strings.Contains(err.Error(), tt.base.Hex()) || !strings.Contains(err.Error(), tt.quote.Hex()) {
				t.Fatalf("error %q does not cite both addresses", err)
			}
		})
	}
}

func TestQuoteZeroRate(t *testing.T) {
	v := newTestVault()
	v.rate = uint256.NewInt(0)
	a := mustAdapter(t, newTestConfig(v))

	if _, err := a.Quote(context.Background(), uint256.NewInt(1), vaultAddr, usdAddr); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("forward: got %v, want ErrInvalidAnswer", err)
	}
	if _, err := a.Quote(context.Background(), uint256.NewInt(1), usdAddr, vaultAddr); !errors.Is(err, fixedpoint.ErrZeroPrice) {
		t.Fatalf("inverse: got %v, want ErrZeroPrice", err)
	}
}

func TestQuoteRateFetchFailure(t *testing.T) {
	v := newTestVault()
	a := mustAdapter(t, newTestConfig(v))
	v.rateErr = errors.New("all endpoints down")

	if _, err := a.Quote(context.Background(), uint256.NewInt(1), vaultAddr, usdAddr); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("got %v, want ErrInvalidAnswer", err)
	}
}

func TestQuoteZeroAmount(t *testing.T) {
	a := mustAdapter(t, newTestConfig(newTestVault()))

	out, err := a.Quote(context.Background(), uint256.NewInt(0), vaultAddr, usdAddr)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !out.IsZero() {
		t.Fatalf("got %s, want 0", out.Dec())
	}
}

func TestBidAsk(t *testing.T) {
	v := newTestVault()
	a := mustAdapter(t, newTestConfig(v))

	before := v.rateCalls
	bid, ask, err := a.BidAsk(context.Background(), dec(t, "10000000000000000000"), vaultAddr, usdAddr)
	if err != nil {
		t.Fatalf("BidAsk: %v", err)
	}
	if !bid.Eq(ask) {
		t.Fatalf("bid %s != ask %s", bid.Dec(), ask.Dec())
	}
	if bid == ask {
		t.Fatal("bid and ask share backing storage")
	}
	if got := v.rateCalls - before; got != 1 {
		t.Fatalf("rate fetched %d times, want 1", got)
	}

	if _, _, err := a.BidAsk(context.Background(), uint256.NewInt(1), otherAddr, usdAddr); !errors.Is(err, ErrPairNotSupported) {
		t.Fatalf("got %v, want ErrPairNotSupported", err)
	}
}

func TestDescription(t *testing.T) {
	t.Run("symbol available", func(t *testing.T) {
		a := mustAdapter(t, newTestConfig(newTestVault()))
		if got, want := a.Description(context.Background()), "yvDAI / USD"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})
	t.Run("symbol unavailable", func(t *testing.T) {
		v := newTestVault()
		v.symErr = errors.New("execution reverted")
		a := mustAdapter(t, newTestConfig(v))
		if got, want := a.Description(context.Background()), vaultAddr.Hex()+" / USD"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})
	t.Run("memoized", func(t *testing.T) {
		v := newTestVault()
		a := mustAdapter(t, newTestConfig(v))
		first := a.Description(context.Background())
		v.symbol = "changed"
		if got := a.Description(context.Background()); got != first {
			t.Fatalf("description changed across calls: %q then %q", first, got)
		}
	})
}

func TestDualSidedConsistency(t *testing.T) {
	// Two adapters over the same vault must agree on every conversion.
	a := mustAdapter(t, newTestConfig(newTestVault()))
	b := mustAdapter(t, newTestConfig(newTestVault()))

	for _, amount := range []string{"1", "1000000", "10000000000000000000", "340282366920938463463374607431768211455"} {
		in := dec(t, amount)
		outA, errA := a.Quote(context.Background(), in, vaultAddr, usdAddr)
		outB, errB := b.Quote(context.Background(), in, vaultAddr, usdAddr)
		if (errA == nil) != (errB == nil) {
			t.Fatalf("amount %s: divergent errors %v vs %v", amount, errA, errB)
		}
		if errA == nil && !outA.Eq(outB) {
			t.Fatalf("amount %s: %s vs %s", amount, outA.Dec(), outB.Dec())
		}
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	a := mustAdapter(t, newTestConfig(newTestVault()))
	if err := reg.Register(a); err != nil {
		t.Fatalf("Register: %v", err)
	}

	t.Run("duplicate name rejected", func(t *testing.T) {
		dup := mustAdapter(t, newTestConfig(newTestVault()))
		if err := reg.Register(dup); !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("got %v, want ErrInvalidConfiguration", err)
		}
	})

	t.Run("duplicate pair rejected", func(t *testing.T) {
		cfg := newTestConfig(newTestVault())
		cfg.Name = "yvdai-usd-2"
		dup := mustAdapter(t, cfg)
		if err := reg.Register(dup); !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("got %v, want ErrInvalidConfiguration", err)
		}
	})

	t.Run("lookup both directions", func(t *testing.T) {
		for _, pair := range [][2]common.Address{{vaultAddr, usdAddr}, {usdAddr, vaultAddr}} {
			got, err := reg.Lookup(pair[0], pair[1])
			if err != nil {
				t.Fatalf("Lookup(%s, %s): %v", pair[0].Hex(), pair[1].Hex(), err)
			}
			if got != a {
				t.Fatal("wrong adapter returned")
			}
		}
	})

	t.Run("lookup unknown pair", func(t *testing.T) {
		if _, err := reg.Lookup(otherAddr, usdAddr); !errors.Is(err, ErrPairNotSupported) {
			t.Fatalf("got %v, want ErrPairNotSupported", err)
		}
	})

	t.Run("get and list", func(t *testing.T) {
		if got, ok := reg.Get("yvdai-usd"); !ok || got != a {
			t.Fatal("Get by name failed")
		}
		if got := reg.List(); len(got) != 1 || got[0] != a {
			t.Fatalf("List returned %d adapters", len(got))
		}
	})
}
