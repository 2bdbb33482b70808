package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"playerMarket/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrWeakPassword       = errors.New("password does not meet security " +
		"requirements: minimum 8 characters, at least one uppercase letter, one " +
		"lowercase letter, one digit, and one special character")
)

// Starting holdings of a freshly registered player.
const (
	startingCoins = 100
	startingGoods = 100
)

// Holdings of bulk-seeded fixture players.
const (
	seedCoins = 10000
	seedGoods = 100
)

type Repository interface {
	CreatePlayer(ctx context.Context, name, passwordHash string, coins, goods int) (int, error)
	GetPlayerByName(ctx context.Context, name string) (*domain.Player, error)
	GetPlayerByID(ctx context.Context, id int) (*domain.Player, error)

	BulkCreatePlayers(ctx context.Context, players []domain.Player) error
	CountPlayers(ctx context.Context) (int, error)
	ListPlayers(ctx context.Context, limit int) ([]domain.Player, error)

	ListBoughtTrades(ctx context.Context, playerID int) ([]domain.TradeRecord, error)
	ListSoldTrades(ctx context.Context, playerID int) ([]domain.TradeRecord, error)
}

type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	if ok, _ := regexp.MatchString("[a-z]", password); !ok {
		return ErrWeakPassword
	}
	if ok, _ := regexp.MatchString("[A-Z]", password); !ok {
		return ErrWeakPassword
	}
	if ok, _ := regexp.MatchString("\\d", password); !ok {
		return ErrWeakPassword
	}
	if ok, _ := regexp.MatchString(`[@$!%*?&]`, password); !ok {
		return ErrWeakPassword
	}

	return nil
}

func (s *Service) RegisterOrLogin(ctx context.Context, name, password string) (*domain.Player, error) {
	player, err := s.repo.GetPlayerByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if player == nil {
		if err := validatePassword(password); err != nil {
			return nil, err
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		newID, err := s.repo.CreatePlayer(ctx, name, string(hashed), startingCoins, startingGoods)
		if err != nil {
			return nil, err
		}
		return s.repo.GetPlayerByID(ctx, newID)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return player, nil
}

// SeedPlayers bulk-creates total fixture players named player_0 ..
// player_{total-1} in batches. Existing names are skipped, so reseeding
// is safe. The password hash is a bcrypt-impossible marker, seeded
// players cannot log in.
func (s *Service) SeedPlayers(ctx context.Context, total, batchSize int) error {
	if total <= 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	players := make([]domain.Player, 0, total)
	for i := 0; i < total; i++ {
		players = append(players, domain.Player{
			Name:         fmt.Sprintf("player_%d", i),
			PasswordHash: "!seeded",
			Coins:        seedCoins,
			Goods:        seedGoods,
		})
	}
	for idx := 0; idx < len(players); idx += batchSize {
		end := idx + batchSize
		if end > len(players) {
			end = len(players)
		}
		if err := s.repo.BulkCreatePlayers(ctx, players[idx:end]); err != nil {
			return err
		}
	}
	return nil
}

type PlayerListResponse struct {
	Total   int `json:"total"`
	Players []struct {
		ID    int    `json:"id"`
		Name  string `json:"name"`
		Coins int    `json:"coins"`
		Goods int    `json:"goods"`
	} `json:"players"`
}

func (s *Service) ListPlayers(ctx context.Context, limit int) (*PlayerListResponse, error) {
	total, err := s.repo.CountPlayers(ctx)
	if err != nil {
		return nil, err
	}
	players, err := s.repo.ListPlayers(ctx, limit)
	if err != nil {
		return nil, err
	}

	resp := &PlayerListResponse{Total: total}
	for _, p := range players {
		resp.Players = append(resp.Players, struct {
			ID    int    `json:"id"`
			Name  string `json:"name"`
			Coins int    `json:"coins"`
			Goods int    `json:"goods"`
		}{
			ID:    p.ID,
			Name:  p.Name,
			Coins: p.Coins,
			Goods: p.Goods,
		})
	}
	return resp, nil
}

type InfoResponse struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Coins        int    `json:"coins"`
	Goods        int    `json:"goods"`
	TradeHistory struct {
		Bought []struct {
			SellerID int `json:"sellerId"`
			Amount   int `json:"amount"`
			Price    int `json:"price"`
		} `json:"bought"`
		Sold []struct {
			BuyerID int `json:"buyerId"`
			Amount  int `json:"amount"`
			Price   int `json:"price"`
		} `json:"sold"`
	} `json:"tradeHistory"`
}

func (s *Service) GetInfo(ctx context.Context, playerID int) (*InfoResponse, error) {
	player, err := s.repo.GetPlayerByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, domain.ErrPlayerNotFound
	}
	bought, err := s.repo.ListBoughtTrades(ctx, playerID)
	if err != nil {
		return nil, err
	}
	sold, err := s.repo.ListSoldTrades(ctx, playerID)
	if err != nil {
		return nil, err
	}

	resp := &InfoResponse{
		ID:    player.ID,
		Name:  player.Name,
		Coins: player.Coins,
		Goods: player.Goods,
	}
	for _, t := range bought {
		resp.TradeHistory.Bought = append(resp.TradeHistory.Bought, struct {
			SellerID int `json:"sellerId"`
			Amount   int `json:"amount"`
			Price    int `json:"price"`
		}{
			SellerID: t.SellerID,
			Amount:   t.Amount,
			Price:    t.Price,
		})
	}
	for _, t := range sold {
		resp.TradeHistory.Sold = append(resp.TradeHistory.Sold, struct {
			BuyerID int `json:"buyerId"`
			Amount  int `json:"amount"`
			Price   int `json:"price"`
		}{
			BuyerID: t.BuyerID,
			Amount:  t.Amount,
			Price:   t.Price,
		})
	}
	return resp, nil
}
