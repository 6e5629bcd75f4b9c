package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/internal/config"
	pg "github.com/stakewell/stakedash/pkg/postgres"
	"github.com/stakewell/stakedash/pkg/postgres/helpers"
	"github.com/stakewell/stakedash/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStakingStore implements storage.StakingStore on gorm. Queries stay portable so the
// same store runs against sqlite in tests and single node deployments.
type PostgresStakingStore struct {
	Db           *gorm.DB
	Logger       *zap.Logger
	GlobalConfig *config.Config
}

func NewPostgresStakingStore(db *gorm.DB, l *zap.Logger, cfg *config.Config) *PostgresStakingStore {
	return &PostgresStakingStore{
		Db:           db,
		Logger:       l,
		GlobalConfig: cfg,
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// lockUser serializes balance mutations per user. sqlite already serializes writers.
func lockUser(tx *gorm.DB, userId uint64) (*storage.User, error) {
	q := tx.Model(&storage.User{})
	if helpers.IsPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var user storage.User
	if res := q.Where("id = ?", userId).First(&user); res.Error != nil {
		return nil, notFound(res.Error)
	}
	return &user, nil
}

func listUserTransactions(tx *gorm.DB, userId uint64) ([]*storage.Transaction, error) {
	txs := make([]*storage.Transaction, 0)
	res := tx.Model(&storage.Transaction{}).
		Where("user_id = ?", userId).
		Order("created_at asc, id asc").
		Find(&txs)
	if res.Error != nil {
		return nil, res.Error
	}
	return txs, nil
}

func listActiveStakes(tx *gorm.DB, userId uint64, coin string, newestFirst bool) ([]*storage.Stake, error) {
	order := "created_at asc, id asc"
	if newestFirst {
		order = "created_at desc, id desc"
	}
	q := tx.Model(&storage.Stake{}).Where("user_id = ? and status = ?", userId, storage.StakeStatus_Active)
	if coin != "" {
		q = q.Where("coin = ?", coin)
	}
	stakes := make([]*storage.Stake, 0)
	if res := q.Order(order).Find(&stakes); res.Error != nil {
		return nil, res.Error
	}
	return stakes, nil
}

func createTransaction(tx *gorm.DB, t *storage.Transaction) (*storage.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = t.CreatedAt.UTC()
	if t.Status == "" {
		t.Status = storage.TransactionStatus_Completed
	}
	if res := tx.Create(t); res.Error != nil {
		return nil, res.Error
	}
	return t, nil
}

func (s *PostgresStakingStore) CreateUser(ctx context.Context, user *storage.User) (*storage.User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC()

	res := s.Db.WithContext(ctx).Create(user)
	if res.Error != nil {
		if pg.IsDuplicateKeyError(res.Error) {
			return nil, fmt.Errorf("%w: user '%s'", storage.ErrDuplicate, user.Email)
		}
		return nil, fmt.Errorf("failed to insert user: %w", res.Error)
	}
	return user, nil
}

func (s *PostgresStakingStore) getUser(ctx context.Context, query string, arg interface{}) (*storage.User, error) {
	var user storage.User
	res := s.Db.WithContext(ctx).Model(&storage.User{}).Where(query, arg).First(&user)
	if res.Error != nil {
		return nil, notFound(res.Error)
	}
	return &user, nil
}

func (s *PostgresStakingStore) GetUserById(ctx context.Context, id uint64) (*storage.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *PostgresStakingStore) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	return s.getUser(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *PostgresStakingStore) GetUserByReferralCode(ctx context.Context, code string) (*storage.User, error) {
	return s.getUser(ctx, "referral_code = ?", strings.TrimSpace(code))
}

func (s *PostgresStakingStore) SetWalletAddress(ctx context.Context, userId uint64, address string) (*storage.User, error) {
	now := time.Now().UTC()
	res := s.Db.WithContext(ctx).Model(&storage.User{}).
		Where("id = ?", userId).
		Updates(map[string]interface{}{
			"wallet_address": address,
			"updated_at":     now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to set wallet address: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, storage.ErrNotFound
	}
	return s.GetUserById(ctx, userId)
}

func (s *PostgresStakingStore) DeleteUser(ctx context.Context, userId uint64) error {
	_, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (interface{}, error) {
		if _, err := lockUser(tx, userId); err != nil {
			return nil, err
		}

		queries := []string{
			`delete from referral_rewards where referrer_id = @userId or referee_id = @userId`,
			`delete from referral_rewards where
				transaction_id in (select id from transactions where user_id = @userId)
				or source_transaction_id in (select id from transactions where user_id = @userId)`,
			`delete from rewards where user_id = @userId`,
			`update transactions set counterparty_id = null where counterparty_id = @userId`,
			`delete from transactions where user_id = @userId`,
			`delete from stakes where user_id = @userId`,
			`update users set referrer_id = null where referrer_id = @userId`,
			`delete from users where id = @userId`,
		}
		for _, query := range queries {
			if res := tx.Exec(query, map[string]interface{}{"userId": userId}); res.Error != nil {
				return nil, fmt.Errorf("failed to delete user %d: %w", userId, res.Error)
			}
		}
		return nil, nil
	}, s.Db.WithContext(ctx), nil)
	return err
}

func (s *PostgresStakingStore) CreateStake(ctx context.Context, userId uint64, coin string, amount decimal.Decimal, at time.Time) (*storage.Stake, *storage.Transaction, error) {
	type created struct {
		stake *storage.Stake
		tx    *storage.Transaction
	}
	at = at.UTC()
	res, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (*created, error) {
		if _, err := lockUser(tx, userId); err != nil {
			return nil, err
		}
		stake := &storage.Stake{
			UserId:    userId,
			Coin:      coin,
			Amount:    amount,
			Status:    storage.StakeStatus_Active,
			CreatedAt: at,
		}
		if r := tx.Create(stake); r.Error != nil {
			return nil, fmt.Errorf("failed to insert stake: %w", r.Error)
		}
		stakeTx, err := createTransaction(tx, &storage.Transaction{
			UserId:    userId,
			Type:      storage.TransactionType_Stake,
			Coin:      coin,
			Amount:    amount,
			CreatedAt: at,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to insert stake transaction: %w", err)
		}
		return &created{stake: stake, tx: stakeTx}, nil
	}, s.Db.WithContext(ctx), nil)
	if err != nil {
		return nil, nil, err
	}
	return res.stake, res.tx, nil
}

func (s *PostgresStakingStore) ListActiveStakes(ctx context.Context, userId uint64) ([]*storage.Stake, error) {
	return listActiveStakes(s.Db.WithContext(ctx), userId, "", false)
}

func (s *PostgresStakingStore) ListAllActiveStakes(ctx context.Context) ([]*storage.Stake, error) {
	stakes := make([]*storage.Stake, 0)
	res := s.Db.WithContext(ctx).Model(&storage.Stake{}).
		Where("status = ?", storage.StakeStatus_Active).
		Order("user_id asc, id asc").
		Find(&stakes)
	if res.Error != nil {
		return nil, res.Error
	}
	return stakes, nil
}

type activeStakeRow struct {
	UserId     uint64
	Amount     decimal.Decimal
	CreatedAt  time.Time
	ReferrerId *uint64
}

// ListActiveStakeTotals returns one row per user with at least one active stake. Amounts are
// summed in Go since sqlite keeps them as text.
func (s *PostgresStakingStore) ListActiveStakeTotals(ctx context.Context) ([]*storage.StakeTotal, error) {
	query := `
		select
			s.user_id,
			s.amount,
			s.created_at,
			u.referrer_id
		from stakes as s
		join users as u on (u.id = s.user_id)
		where s.status = @status
		order by s.user_id asc, s.id asc
	`
	rows := make([]*activeStakeRow, 0)
	res := s.Db.WithContext(ctx).Raw(query, map[string]interface{}{"status": storage.StakeStatus_Active}).Scan(&rows)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to list active stakes: %w", res.Error)
	}

	totals := make([]*storage.StakeTotal, 0)
	var current *storage.StakeTotal
	for _, row := range rows {
		if current == nil || current.UserId != row.UserId {
			current = &storage.StakeTotal{
				UserId:          row.UserId,
				Total:           decimal.Zero,
				ReferrerId:      row.ReferrerId,
				EarliestStakeAt: row.CreatedAt,
			}
			totals = append(totals, current)
		}
		current.Total = current.Total.Add(row.Amount)
		current.StakeCount++
		if row.CreatedAt.Before(current.EarliestStakeAt) {
			current.EarliestStakeAt = row.CreatedAt
		}
	}
	return totals, nil
}

func (s *PostgresStakingStore) Unstake(ctx context.Context, userId uint64, coin string, amount decimal.Decimal, at time.Time) (*storage.Transaction, error) {
	at = at.UTC()
	return helpers.WrapTxAndCommit(func(tx *gorm.DB) (*storage.Transaction, error) {
		if _, err := lockUser(tx, userId); err != nil {
			return nil, err
		}
		stakes, err := listActiveStakes(tx, userId, coin, true)
		if err != nil {
			return nil, err
		}
		total := decimal.Zero
		for _, st := range stakes {
			total = total.Add(st.Amount)
		}
		if amount.GreaterThan(total) {
			return nil, fmt.Errorf("%w: unstake %s exceeds staked %s", storage.ErrInsufficientBalance, amount, total)
		}

		remaining := amount
		for _, st := range stakes {
			if !remaining.IsPositive() {
				break
			}
			updates := map[string]interface{}{"updated_at": at}
			if st.Amount.LessThanOrEqual(remaining) {
				remaining = remaining.Sub(st.Amount)
				updates["amount"] = decimal.Zero
				updates["status"] = storage.StakeStatus_Withdrawn
			} else {
				updates["amount"] = st.Amount.Sub(remaining)
				remaining = decimal.Zero
			}
			if r := tx.Model(&storage.Stake{}).Where("id = ?", st.Id).Updates(updates); r.Error != nil {
				return nil, fmt.Errorf("failed to update stake %d: %w", st.Id, r.Error)
			}
		}

		return createTransaction(tx, &storage.Transaction{
			UserId:    userId,
			Type:      storage.TransactionType_Unstake,
			Coin:      coin,
			Amount:    amount,
			CreatedAt: at,
		})
	}, s.Db.WithContext(ctx), nil)
}

// WithdrawAll closes the user's active stakes in coin and pays out their principal together with
// the whole available balance.
func (s *PostgresStakingStore) WithdrawAll(ctx context.Context, userId uint64, coin string, at time.Time) (*storage.Transaction, error) {
	at = at.UTC()
	return helpers.WrapTxAndCommit(func(tx *gorm.DB) (*storage.Transaction, error) {
		if _, err := lockUser(tx, userId); err != nil {
			return nil, err
		}
		stakes, err := listActiveStakes(tx, userId, coin, false)
		if err != nil {
			return nil, err
		}
		txs, err := listUserTransactions(tx, userId)
		if err != nil {
			return nil, err
		}

		principal := decimal.Zero
		for _, st := range stakes {
			principal = principal.Add(st.Amount)
		}
		available := decimal.Max(decimal.Zero, storage.SummarizeLedger(txs).Available)
		if principal.IsZero() && available.IsZero() {
			return nil, fmt.Errorf("%w: nothing to withdraw", storage.ErrInsufficientBalance)
		}

		res := tx.Model(&storage.Stake{}).
			Where("user_id = ? and coin = ? and status = ?", userId, coin, storage.StakeStatus_Active).
			Updates(map[string]interface{}{
				"amount":     decimal.Zero,
				"status":     storage.StakeStatus_Withdrawn,
				"updated_at": at,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to withdraw stakes: %w", res.Error)
		}

		return createTransaction(tx, &storage.Transaction{
			UserId:          userId,
			Type:            storage.TransactionType_WithdrawAll,
			Coin:            coin,
			Amount:          principal.Add(available),
			PrincipalAmount: decimal.NewNullDecimal(principal),
			CreatedAt:       at,
		})
	}, s.Db.WithContext(ctx), nil)
}

func (s *PostgresStakingStore) Withdraw(ctx context.Context, userId uint64, coin string, amount decimal.Decimal, at time.Time) (*storage.Transaction, error) {
	at = at.UTC()
	return helpers.WrapTxAndCommit(func(tx *gorm.DB) (*storage.Transaction, error) {
		if _, err := lockUser(tx, userId); err != nil {
			return nil, err
		}
		txs, err := listUserTransactions(tx, userId)
		if err != nil {
			return nil, err
		}
		available := storage.SummarizeLedger(txs).Available
		if amount.GreaterThan(available) {
			return nil, fmt.Errorf("%w: withdraw %s exceeds available %s", storage.ErrInsufficientBalance, amount, available)
		}
		return createTransaction(tx, &storage.Transaction{
			UserId:    userId,
			Type:      storage.TransactionType_Withdraw,
			Coin:      coin,
			Amount:    amount,
			CreatedAt: at,
		})
	}, s.Db.WithContext(ctx), nil)
}

func (s *PostgresStakingStore) Transfer(ctx context.Context, fromUserId uint64, toUserId uint64, coin string, amount decimal.Decimal, at time.Time) (*storage.Transaction, error) {
	at = at.UTC()
	return helpers.WrapTxAndCommit(func(tx *gorm.DB) (*storage.Transaction, error) {
		if _, err := lockUser(tx, fromUserId); err != nil {
			return nil, err
		}
		var recipient storage.User
		if res := tx.Model(&storage.User{}).Where("id = ?", toUserId).First(&recipient); res.Error != nil {
			return nil, notFound(res.Error)
		}

		txs, err := listUserTransactions(tx, fromUserId)
		if err != nil {
			return nil, err
		}
		available := storage.SummarizeLedger(txs).Available
		if amount.GreaterThan(available) {
			return nil, fmt.Errorf("%w: transfer %s exceeds available %s", storage.ErrInsufficientBalance, amount, available)
		}

		sent, err := createTransaction(tx, &storage.Transaction{
			UserId:         fromUserId,
			Type:           storage.TransactionType_Transfer,
			Coin:           coin,
			Amount:         amount.Neg(),
			CounterpartyId: &toUserId,
			CreatedAt:      at,
		})
		if err != nil {
			return nil, err
		}
		_, err = createTransaction(tx, &storage.Transaction{
			UserId:         toUserId,
			Type:           storage.TransactionType_Transfer,
			Coin:           coin,
			Amount:         amount,
			CounterpartyId: &fromUserId,
			CreatedAt:      at,
		})
		if err != nil {
			return nil, err
		}
		return sent, nil
	}, s.Db.WithContext(ctx), nil)
}

func (s *PostgresStakingStore) ListTransactions(ctx context.Context, filter *storage.TransactionFilter) ([]*storage.Transaction, error) {
	q := s.Db.WithContext(ctx).Model(&storage.Transaction{})
	if filter == nil {
		filter = &storage.TransactionFilter{}
	}
	if filter.UserId != 0 {
		q = q.Where("user_id = ?", filter.UserId)
	}
	if len(filter.Types) > 0 {
		q = q.Where("type in ?", filter.Types)
	}
	if filter.CreatedAfter != nil {
		q = q.Where("created_at > ?", filter.CreatedAfter.UTC())
	}
	if filter.Ascending {
		q = q.Order("created_at asc, id asc")
	} else {
		q = q.Order("created_at desc, id desc")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	txs := make([]*storage.Transaction, 0)
	if res := q.Find(&txs); res.Error != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", res.Error)
	}
	return txs, nil
}

func hasRewardInBucket(tx *gorm.DB, userId uint64, bucket int64) (bool, error) {
	var count int64
	res := tx.Model(&storage.Transaction{}).
		Where("user_id = ? and type = ? and posting_bucket = ?", userId, storage.TransactionType_Reward, bucket).
		Count(&count)
	if res.Error != nil {
		return false, res.Error
	}
	return count > 0, nil
}

func (s *PostgresStakingStore) HasRewardInBucket(ctx context.Context, userId uint64, bucket int64) (bool, error) {
	return hasRewardInBucket(s.Db.WithContext(ctx), userId, bucket)
}

func (s *PostgresStakingStore) PostReward(ctx context.Context, posting *storage.RewardPosting) (*storage.PostedReward, error) {
	postedAt := posting.PostedAt.UTC()
	return helpers.WrapTxAndCommit(func(tx *gorm.DB) (*storage.PostedReward, error) {
		exists, err := hasRewardInBucket(tx, posting.UserId, posting.PostingBucket)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, storage.ErrAlreadyPosted
		}

		bucket := posting.PostingBucket
		rewardTx, err := createTransaction(tx, &storage.Transaction{
			UserId:        posting.UserId,
			Type:          storage.TransactionType_Reward,
			Coin:          posting.Coin,
			Amount:        posting.Amount,
			PostingBucket: &bucket,
			CreatedAt:     postedAt,
		})
		if err != nil {
			if pg.IsDuplicateKeyError(err) {
				return nil, storage.ErrAlreadyPosted
			}
			return nil, fmt.Errorf("failed to insert reward transaction: %w", err)
		}

		reward := &storage.Reward{
			UserId:          posting.UserId,
			TransactionId:   rewardTx.Id,
			Amount:          posting.Amount,
			PrincipalAmount: posting.PrincipalAmount,
			ApyPercent:      posting.ApyPercent,
			IntervalSeconds: posting.IntervalSeconds,
			CreatedAt:       postedAt,
		}
		if res := tx.Create(reward); res.Error != nil {
			return nil, fmt.Errorf("failed to insert reward: %w", res.Error)
		}

		posted := &storage.PostedReward{Transaction: rewardTx, Reward: reward}
		if posting.ReferrerId == nil || !posting.ReferralAmount.IsPositive() {
			return posted, nil
		}

		refereeId := posting.UserId
		referralTx, err := createTransaction(tx, &storage.Transaction{
			UserId:         *posting.ReferrerId,
			Type:           storage.TransactionType_ReferralReward,
			Coin:           posting.Coin,
			Amount:         posting.ReferralAmount,
			CounterpartyId: &refereeId,
			CreatedAt:      postedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to insert referral transaction: %w", err)
		}
		referral := &storage.ReferralReward{
			ReferrerId:          *posting.ReferrerId,
			RefereeId:           refereeId,
			TransactionId:       referralTx.Id,
			SourceTransactionId: rewardTx.Id,
			Amount:              posting.ReferralAmount,
			CreatedAt:           postedAt,
		}
		if res := tx.Create(referral); res.Error != nil {
			return nil, fmt.Errorf("failed to insert referral reward: %w", res.Error)
		}
		posted.ReferralTransaction = referralTx
		posted.ReferralReward = referral
		return posted, nil
	}, s.Db.WithContext(ctx), nil)
}

func (s *PostgresStakingStore) GetSetting(ctx context.Context, name string) (*storage.StakingSetting, error) {
	var setting storage.StakingSetting
	res := s.Db.WithContext(ctx).Model(&storage.StakingSetting{}).Where("name = ?", name).First(&setting)
	if res.Error != nil {
		return nil, notFound(res.Error)
	}
	return &setting, nil
}

func (s *PostgresStakingStore) PutSetting(ctx context.Context, name string, value string) (*storage.StakingSetting, error) {
	saved, err := s.PutSettings(ctx, []*storage.StakingSetting{{Name: name, Value: value}})
	if err != nil {
		return nil, err
	}
	return saved[0], nil
}

func (s *PostgresStakingStore) PutSettings(ctx context.Context, settings []*storage.StakingSetting) ([]*storage.StakingSetting, error) {
	updatedAt := time.Now().UTC()
	return helpers.WrapTxAndCommit(func(tx *gorm.DB) ([]*storage.StakingSetting, error) {
		saved := make([]*storage.StakingSetting, 0, len(settings))
		for _, in := range settings {
			setting := &storage.StakingSetting{
				Name:      in.Name,
				Value:     in.Value,
				UpdatedAt: updatedAt,
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(setting)
			if res.Error != nil {
				return nil, fmt.Errorf("failed to save setting '%s': %w", in.Name, res.Error)
			}
			saved = append(saved, setting)
		}
		return saved, nil
	}, s.Db.WithContext(ctx), nil)
}

func (s *PostgresStakingStore) ListSettings(ctx context.Context) ([]*storage.StakingSetting, error) {
	settings := make([]*storage.StakingSetting, 0)
	res := s.Db.WithContext(ctx).Model(&storage.StakingSetting{}).Order("name asc").Find(&settings)
	if res.Error != nil {
		return nil, res.Error
	}
	return settings, nil
}

func (s *PostgresStakingStore) CountLedger(ctx context.Context) (int64, error) {
	var count int64
	res := s.Db.WithContext(ctx).Model(&storage.Transaction{}).Count(&count)
	return count, res.Error
}

// IterateLedger walks every transaction in id order using keyset pagination.
func (s *PostgresStakingStore) IterateLedger(ctx context.Context, batchSize int, fn func(batch []*storage.Transaction) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	var lastId uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := make([]*storage.Transaction, 0, batchSize)
		res := s.Db.WithContext(ctx).Model(&storage.Transaction{}).
			Where("id > ?", lastId).
			Order("id asc").
			Limit(batchSize).
			Find(&batch)
		if res.Error != nil {
			return fmt.Errorf("failed to read ledger after id %d: %w", lastId, res.Error)
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		lastId = batch[len(batch)-1].Id
		if len(batch) < batchSize {
			return nil
		}
	}
}

func (s *PostgresStakingStore) Ping(ctx context.Context) error {
	db, err := s.Db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}
