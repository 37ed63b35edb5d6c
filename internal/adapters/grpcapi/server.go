package grpcapi

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/kvetinski/identity/internal/adapters/grpcapi/identityv1"
	"github.com/kvetinski/identity/internal/domain"
	accountsvc "github.com/kvetinski/identity/internal/service/account"
)

// ErrorDomain is the ErrorInfo domain attached to every error status.
const ErrorDomain = "identity"

type Server struct {
	identityv1.UnimplementedIdentityServiceServer

	svc    *accountsvc.Service
	logger *slog.Logger
}

func NewServer(svc *accountsvc.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{svc: svc, logger: logger}
}

func (s *Server) Register(ctx context.Context, req *identityv1.RegisterRequest) (*identityv1.RegisterResponse, error) {
	res, err := s.svc.Register(ctx, accountsvc.RegisterInput{
		Name:        req.GetName(),
		PhoneNumber: req.GetPhoneNumber(),
		Role:        req.GetRole(),
		Password:    req.GetPassword(),
	})
	if err != nil {
		return nil, s.fail("register", err)
	}

	return &identityv1.RegisterResponse{Message: res.Message, AccountId: res.AccountID.String()}, nil
}

func (s *Server) Verify(ctx context.Context, req *identityv1.VerifyRequest) (*identityv1.VerifyResponse, error) {
	msg, err := s.svc.Verify(ctx, req.GetPhoneNumber(), req.GetCode())
	if err != nil {
		return nil, s.fail("verify", err)
	}

	return &identityv1.VerifyResponse{Message: msg}, nil
}

func (s *Server) Login(ctx context.Context, req *identityv1.LoginRequest) (*identityv1.LoginResponse, error) {
	res, err := s.svc.Login(ctx, req.GetPhoneNumber(), req.GetPassword())
	if err != nil {
		return nil, s.fail("login", err)
	}

	return &identityv1.LoginResponse{
		Message: res.Message,
		Token:   res.Token,
		Account: toWireAccount(res.Account),
	}, nil
}

func (s *Server) Whoami(ctx context.Context, req *identityv1.WhoamiRequest) (*identityv1.WhoamiResponse, error) {
	token := req.GetToken()
	if token == "" {
		token = bearerFromMetadata(ctx)
	}
	if token == "" {
		return nil, mapDomainError(domain.ErrInvalidToken)
	}

	summary, err := s.svc.Whoami(ctx, token)
	if err != nil {
		return nil, s.fail("whoami", err)
	}

	return &identityv1.WhoamiResponse{Account: toWireAccount(summary)}, nil
}

func (s *Server) fail(op string, err error) error {
	if domain.Kind(err) == domain.KindOperationFailed {
		s.logger.Error("grpc operation failed", "operation", op, "error", err)
	}

	return mapDomainError(err)
}

func bearerFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	for _, v := range md.Get("authorization") {
		if token, found := strings.CutPrefix(v, "Bearer "); found {
			return strings.TrimSpace(token)
		}
	}

	return ""
}

func codeFor(kind string) codes.Code {
	switch kind {
	case domain.KindInvalidArgument, domain.KindInvalidCode:
		return codes.InvalidArgument
	case domain.KindDuplicateAccount:
		return codes.AlreadyExists
	case domain.KindDeliveryFailed:
		return codes.Unavailable
	case domain.KindAccountNotFound:
		return codes.NotFound
	case domain.KindCodeExpired, domain.KindNotVerified:
		return codes.FailedPrecondition
	case domain.KindInvalidCredentials, domain.KindInvalidToken:
		return codes.Unauthenticated
	default:
		return codes.Internal
	}
}

// mapDomainError turns err into a status whose ErrorInfo reason is the
// domain error kind. Errors outside the taxonomy become Internal.
func mapDomainError(err error) error {
	kind := domain.Kind(err)
	st := status.New(codeFor(kind), domain.Message(err))

	withInfo, detailErr := st.WithDetails(&errdetails.ErrorInfo{Reason: kind, Domain: ErrorDomain})
	if detailErr != nil {
		return st.Err()
	}

	return withInfo.Err()
}

// ErrorKind extracts the domain error kind from a status produced by this
// server. It returns "" when err carries no ErrorInfo.
func ErrorKind(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}

	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info.GetReason()
		}
	}

	return ""
}

func toWireAccount(s domain.Summary) *identityv1.Account {
	return &identityv1.Account{
		Id:          s.ID.String(),
		Name:        s.Name,
		PhoneNumber: s.PhoneNumber,
		Role:        string(s.Role),
		IsVerified:  s.IsVerified,
		CreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339),
	}
}
