package userService

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/auth"
	"github.com/stakewell/stakedash/pkg/eventBus/eventBusTypes"
	"github.com/stakewell/stakedash/pkg/service/baseDataService"
	serviceTypes "github.com/stakewell/stakedash/pkg/service/types"
	"github.com/stakewell/stakedash/pkg/storage"
	"github.com/stakewell/stakedash/pkg/utils"
	"go.uber.org/zap"
)

const (
	minPasswordLength     = 8
	referralCodeAttempts  = 5
	maxEmailLength        = 254
	maxPasswordByteLength = 72
)

type UserService struct {
	baseDataService.BaseDataService
	logger       *zap.Logger
	globalConfig *config.Config
	tokenIssuer  *auth.TokenIssuer
	eventBus     eventBusTypes.IEventBus
}

func NewUserService(
	store storage.StakingStore,
	tokenIssuer *auth.TokenIssuer,
	eb eventBusTypes.IEventBus,
	logger *zap.Logger,
	globalConfig *config.Config,
) *UserService {
	return &UserService{
		BaseDataService: baseDataService.BaseDataService{
			Store: store,
		},
		logger:       logger,
		globalConfig: globalConfig,
		tokenIssuer:  tokenIssuer,
		eventBus:     eb,
	}
}

type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referralCode"`
}

type Session struct {
	User  *storage.User `json:"user"`
	Token *auth.Token   `json:"token"`
}

func validateCredentials(email string, password string) error {
	if email == "" || len(email) > maxEmailLength {
		return serviceTypes.NewValidationError("email", "must be a valid email address")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return serviceTypes.NewValidationError("email", "must be a valid email address")
	}
	if len(password) < minPasswordLength {
		return serviceTypes.NewValidationError("password", "must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordByteLength {
		return serviceTypes.NewValidationError("password", "must be at most %d bytes", maxPasswordByteLength)
	}
	return nil
}

// Register creates an account with a fresh referral code. An optional referral code links the
// new user to their referrer.
func (us *UserService) Register(ctx context.Context, req *RegisterRequest) (*storage.User, error) {
	email := utils.NormalizeEmail(req.Email)
	if err := validateCredentials(email, req.Password); err != nil {
		return nil, err
	}

	if _, err := us.Store.GetUserByEmail(ctx, email); err == nil {
		return nil, serviceTypes.NewValidationError("email", "is already registered")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	var referrerId *uint64
	if req.ReferralCode != "" {
		referrer, err := us.Store.GetUserByReferralCode(ctx, req.ReferralCode)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, serviceTypes.NewValidationError("referralCode", "does not match any user")
			}
			return nil, err
		}
		referrerId = &referrer.Id
	}

	code, err := us.newUniqueReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password, us.globalConfig.AuthConfig.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := us.Store.CreateUser(ctx, &storage.User{
		Email:        email,
		PasswordHash: hash,
		ReferralCode: code,
		ReferrerId:   referrerId,
		IsAdmin:      us.globalConfig.IsAdminEmail(email),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, serviceTypes.NewValidationError("email", "is already registered")
		}
		return nil, err
	}
	us.logger.Sugar().Infow("Registered user",
		zap.Uint64("userId", user.Id),
		zap.Bool("referred", referrerId != nil),
		zap.Bool("isAdmin", user.IsAdmin),
	)
	return user, nil
}

func (us *UserService) newUniqueReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code := utils.NewReferralCode()
		_, err := us.Store.GetUserByReferralCode(ctx, code)
		if errors.Is(err, storage.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to generate a unique referral code after %d attempts", referralCodeAttempts)
}

func (us *UserService) Login(ctx context.Context, email string, password string) (*Session, error) {
	user, err := us.Store.GetUserByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, serviceTypes.ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, serviceTypes.ErrInvalidCredentials
	}
	token, err := us.tokenIssuer.Issue(user.Id, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}

// ConnectWallet stores the checksummed form of a valid hex wallet address.
func (us *UserService) ConnectWallet(ctx context.Context, userId uint64, address string) (*storage.User, error) {
	if !utils.IsValidWalletAddress(address) {
		return nil, serviceTypes.NewValidationError("walletAddress", "must be a 0x-prefixed 20 byte hex address")
	}
	return us.Store.SetWalletAddress(ctx, userId, utils.NormalizeWalletAddress(address))
}

func (us *UserService) GetUser(ctx context.Context, userId uint64) (*storage.User, error) {
	return us.Store.GetUserById(ctx, userId)
}

// DeleteUser removes a user and everything they own. Only admins may delete, and not themselves.
func (us *UserService) DeleteUser(ctx context.Context, actorId uint64, userId uint64) error {
	actor, err := us.Store.GetUserById(ctx, actorId)
	if err != nil {
		return err
	}
	if !actor.IsAdmin {
		return serviceTypes.ErrForbidden
	}
	if actorId == userId {
		return serviceTypes.NewValidationError("id", "admins cannot delete their own account")
	}
	if err := us.Store.DeleteUser(ctx, userId); err != nil {
		return err
	}
	us.logger.Sugar().Infow("Deleted user", zap.Uint64("userId", userId), zap.Uint64("deletedBy", actorId))
	if us.eventBus != nil {
		us.eventBus.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_UserDeleted,
			Data: &eventBusTypes.UserDeletedData{
				UserId:    userId,
				DeletedBy: actorId,
				DeletedAt: time.Now().UTC(),
			},
		})
	}
	return nil
}
