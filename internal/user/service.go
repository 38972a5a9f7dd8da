// Package user はユーザー管理のドメインロジックを提供する。
// 登録、ユーザーディレクトリ、退会処理を扱う。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/todolist/internal/model"
	"github.com/hitoshi/todolist/internal/repository"
)

// ユーザー名とパスワードの長さ制限
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
	MaxFullNameLength = 100
)

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	bcryptCost  int
}

// NewService はServiceの新しいインスタンスを生成する。
// bcryptCostが0の場合はbcrypt.DefaultCostを使う。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	bcryptCost int,
) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		bcryptCost:  bcryptCost,
	}
}

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

func validateRegister(in RegisterInput) (RegisterInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	n := utf8.RuneCountInString(in.Username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return in, model.NewValidationError(
			fmt.Sprintf("ユーザー名は%d〜%d文字で入力してください", MinUsernameLength, MaxUsernameLength))
	}
	if strings.ContainsAny(in.Username, " \t\r\n") {
		return in, model.NewValidationError("ユーザー名に空白は使えません")
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return in, model.NewValidationError(
			fmt.Sprintf("パスワードは%d文字以上で入力してください", MinPasswordLength))
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return in, model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if utf8.RuneCountInString(in.FullName) > MaxFullNameLength {
		return in, model.NewValidationError(
			fmt.Sprintf("氏名は%d文字以内で入力してください", MaxFullNameLength))
	}
	return in, nil
}

// Register はユーザーを登録する。パスワードはbcryptでハッシュ化して保存する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in, err := validateRegister(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateUsernameError(in.Username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, model.NewValidationError("パスワードが長すぎます")
		}
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	u := &model.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateUsernameError(in.Username)
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
	)
	return u, nil
}

// FindByID は指定IDのユーザーを返す。
func (s *Service) FindByID(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError(userID)
	}
	return u, nil
}

// ListAll はユーザーディレクトリとして全ユーザーを返す。
// 共有相手や担当者を選ぶ画面で使う。
func (s *Service) ListAll(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: 所有リスト、共有、担当タスク）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(userID)
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError(userID)
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
