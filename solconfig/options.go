package solconfig

import (
	"time"

	"github.com/gagliardetto/solana-go/rpc"

	"github.com/cygnus-wealth/sol-core/rpcchain"
)

// Environment selects a default endpoint table.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentTestnet    Environment = "testnet"
	EnvironmentLocal      Environment = "local"
)

// Options is the top-level configuration object named in spec §6.
type Options struct {
	Environment            Environment
	RPCEndpoints           []rpcchain.EndpointConfig
	Commitment             rpc.CommitmentType
	CacheTTL               time.Duration
	MaxRetries             int
	EnableCircuitBreaker   bool
	EnableHealthMonitoring bool
}

// DefaultOptions returns the recognized-key defaults from spec §6.
func DefaultOptions() Options {
	return Options{
		Environment:            EnvironmentTestnet,
		Commitment:             rpc.CommitmentConfirmed,
		CacheTTL:               30 * time.Second,
		MaxRetries:             3,
		EnableCircuitBreaker:   true,
		EnableHealthMonitoring: false,
	}
}

// FromEnv overlays process environment variables onto DefaultOptions,
// following the teacher's GetEnv/GetEnvInt/GetEnvDuration override
// convention rather than a config file or flag parser.
func FromEnv() Options {
	opts := DefaultOptions()
	opts.Environment = Environment(GetEnv("SOLCORE_ENVIRONMENT", string(opts.Environment)))
	opts.Commitment = rpc.CommitmentType(GetEnv("SOLCORE_COMMITMENT", string(opts.Commitment)))
	opts.CacheTTL = GetEnvDuration("SOLCORE_CACHE_TTL", opts.CacheTTL)
	opts.MaxRetries = GetEnvInt("SOLCORE_MAX_RETRIES", opts.MaxRetries)
	opts.EnableCircuitBreaker = GetEnvBool("SOLCORE_ENABLE_CIRCUIT_BREAKER", opts.EnableCircuitBreaker)
	opts.EnableHealthMonitoring = GetEnvBool("SOLCORE_ENABLE_HEALTH_MONITORING", opts.EnableHealthMonitoring)

	if len(opts.RPCEndpoints) == 0 {
		opts.RPCEndpoints = DefaultEndpoints(opts.Environment)
	}
	return opts
}

// DefaultEndpoints is a pure table lookup — never process-wide mutable
// state, per spec §9's design note on default endpoints (distinct from a
// live chain's UpdateEndpoints hot-swap, which is §9 Open Question (a)).
func DefaultEndpoints(env Environment) []rpcchain.EndpointConfig {
	standardOnly := map[rpcchain.Capability]bool{rpcchain.CapStandard: true}
	withDAS := map[rpcchain.Capability]bool{rpcchain.CapStandard: true, rpcchain.CapDAS: true}

	switch env {
	case EnvironmentProduction:
		return []rpcchain.EndpointConfig{
			{
				URL:          "https://api.mainnet-beta.solana.com",
				Name:         "mainnet-beta-primary",
				Priority:     0,
				Capabilities: withDAS,
				RateLimit:    rpcchain.DefaultRateLimiterConfig(),
				Breaker:      rpcchain.DefaultBreakerConfig(),
				TimeoutMs:    10_000,
			},
		}
	case EnvironmentLocal:
		return []rpcchain.EndpointConfig{
			{
				URL:          "http://localhost:8899",
				Name:         "localhost",
				Priority:     0,
				Capabilities: standardOnly,
				RateLimit:    rpcchain.DefaultRateLimiterConfig(),
				Breaker:      rpcchain.DefaultBreakerConfig(),
				TimeoutMs:    5_000,
			},
		}
	case EnvironmentTestnet:
		fallthrough
	default:
		return []rpcchain.EndpointConfig{
			{
				URL:          "https://api.devnet.solana.com",
				Name:         "devnet-primary",
				Priority:     0,
				Capabilities: withDAS,
				RateLimit:    rpcchain.DefaultRateLimiterConfig(),
				Breaker:      rpcchain.DefaultBreakerConfig(),
				TimeoutMs:    10_000,
			},
		}
	}
}
