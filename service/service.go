package service

import (
	"context"
	"errors"
	"fmt"
	"net"

	apitypes "github.com/containerd/containerd/api/types"
	"github.com/containerd/containerd/v2/plugins"
	"github.com/containerd/errdefs"
	"github.com/containerd/errdefs/pkg/errgrpc"
	"github.com/containerd/log"
	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"
	"github.com/containerd/ttrpc"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/MarcinKonowalczyk/breakfast/bf"
)

const (
	// ServiceName is the ttrpc service the transpiler is registered under
	ServiceName = "breakfast.v1.Transpiler"
	// Name reported by Info
	Name    = "io.breakfast.transpiler.v1"
	Version = "v1.0.0"
)

type Config struct {
	Generator bf.Config
	// CacheSize bounds the number of memoized sources
	CacheSize int
}

func DefaultConfig() Config {
	return Config{
		Generator: bf.DefaultConfig(),
		CacheSize: bf.DefaultCacheSize,
	}
}

func init() {
	registry.Register(&plugin.Registration{
		Type: plugins.TTRPCPlugin,
		ID:   "transpiler",
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			config, ok := ic.Config.(*Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T: %w", ic.Config, errdefs.ErrInvalidArgument)
			}
			return newTranspilerService(ic.Context, *config)
		},
	})
}

// TTRPCService is implemented by plugin instances that expose ttrpc endpoints
type TTRPCService interface {
	RegisterTTRPC(*ttrpc.Server) error
}

type transpilerService struct {
	transpiler bf.Transpiler
	config     bf.Config
}

var (
	_ = TTRPCService(&transpilerService{})
)

func newTranspilerService(ctx context.Context, config Config) (*transpilerService, error) {
	g, err := bf.NewGenerator(config.Generator)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}
	log.G(ctx).WithField("tape_size", config.Generator.TapeSize).WithField("eof", config.Generator.EOF).Debug("transpiler service created")
	return &transpilerService{
		transpiler: bf.NewCache(g, config.CacheSize),
		config:     config.Generator,
	}, nil
}

// RegisterTTRPC allows TTRPC services to be registered with the underlying server
func (s *transpilerService) RegisterTTRPC(server *ttrpc.Server) error {
	server.RegisterService(ServiceName, &ttrpc.ServiceDesc{
		Methods: map[string]ttrpc.Method{
			"Transpile": func(ctx context.Context, unmarshal func(interface{}) error) (interface{}, error) {
				var req wrapperspb.StringValue
				if err := unmarshal(&req); err != nil {
					return nil, err
				}
				return s.Transpile(ctx, &req)
			},
			"Info": func(ctx context.Context, unmarshal func(interface{}) error) (interface{}, error) {
				var req emptypb.Empty
				if err := unmarshal(&req); err != nil {
					return nil, err
				}
				return s.Info(ctx, &req)
			},
		},
	})
	return nil
}

// Transpile brainfuck source into C
func (s *transpilerService) Transpile(ctx context.Context, r *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	log.G(ctx).WithField("size", len(r.GetValue())).Debug("transpile (service)")

	code, err := s.transpiler.Transpile(r.GetValue())
	if err != nil {
		log.G(ctx).WithError(err).Debug("transpile rejected")
		return nil, errgrpc.ToGRPC(err)
	}
	return wrapperspb.String(code), nil
}

// Info describes the transpiler and the generator settings it uses
func (s *transpilerService) Info(ctx context.Context, _ *emptypb.Empty) (*apitypes.RuntimeInfo, error) {
	log.G(ctx).Debug("info (service)")

	features, err := structpb.NewStruct(map[string]interface{}{
		"tape_size": s.config.TapeSize,
		"indent":    s.config.Indent,
		"eof":       s.config.EOF.String(),
	})
	if err != nil {
		return nil, errgrpc.ToGRPC(err)
	}
	anyFeatures, err := anypb.New(features)
	if err != nil {
		return nil, errgrpc.ToGRPC(err)
	}

	return &apitypes.RuntimeInfo{
		Name: Name,
		Version: &apitypes.RuntimeVersion{
			Version: Version,
		},
		Features: anyFeatures,
	}, nil
}

// loadPlugins initializes every registered ttrpc plugin and registers its
// endpoints on server.
func loadPlugins(ctx context.Context, server *ttrpc.Server, config Config) error {
	set := plugin.NewPluginSet()
	for _, r := range registry.Graph(func(*plugin.Registration) bool { return false }) {
		if r.Type != plugins.TTRPCPlugin {
			continue
		}
		ic := plugin.NewContext(ctx, set, map[string]string{})
		ic.Config = &config

		p := r.Init(ic)
		if err := set.Add(p); err != nil {
			return fmt.Errorf("adding plugin %s: %w", r.URI(), err)
		}
		instance, err := p.Instance()
		if err != nil {
			if plugin.IsSkipPlugin(err) {
				log.G(ctx).WithError(err).Infof("skipping plugin %s", r.URI())
				continue
			}
			return fmt.Errorf("initializing plugin %s: %w", r.URI(), err)
		}
		svc, ok := instance.(TTRPCService)
		if !ok {
			log.G(ctx).Warnf("plugin %s does not expose ttrpc endpoints", r.URI())
			continue
		}
		if err := svc.RegisterTTRPC(server); err != nil {
			return fmt.Errorf("registering plugin %s: %w", r.URI(), err)
		}
		log.G(ctx).Debugf("loaded plugin %s", r.URI())
	}
	return nil
}

// Serve answers transpile requests on l until ctx is done.
func Serve(ctx context.Context, l net.Listener, config Config) error {
	server, err := ttrpc.NewServer()
	if err != nil {
		return fmt.Errorf("creating ttrpc server: %w", err)
	}
	if err := loadPlugins(ctx, server, config); err != nil {
		server.Close()
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			log.G(ctx).Debug("shutting down ttrpc server")
			server.Close()
		case <-done:
		}
	}()

	log.G(ctx).WithField("address", l.Addr().String()).Info("serving")
	if err := server.Serve(ctx, l); err != nil && !errors.Is(err, ttrpc.ErrServerClosed) {
		return fmt.Errorf("serving ttrpc: %w", err)
	}
	return nil
}
