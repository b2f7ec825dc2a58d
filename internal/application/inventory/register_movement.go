package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// RegisterMovementUseCase adapta los requests HTTP al motor del ledger.
// Es la frontera del catálogo: valida que el ítem y las ubicaciones existan antes de
// llamar al motor, que no vuelve a validarlos.
type RegisterMovementUseCase struct {
	ledger       *LedgerUseCase
	itemRepo     repository.ItemRepository
	locationRepo repository.LocationRepository
}

// NewRegisterMovementUseCase construye el caso de uso.
func NewRegisterMovementUseCase(
	ledger *LedgerUseCase,
	itemRepo repository.ItemRepository,
	locationRepo repository.LocationRepository,
) *RegisterMovementUseCase {
	return &RegisterMovementUseCase{
		ledger:       ledger,
		itemRepo:     itemRepo,
		locationRepo: locationRepo,
	}
}

// ReceiveFromRequest valida catálogo y ejecuta Receive.
func (uc *RegisterMovementUseCase) ReceiveFromRequest(ctx context.Context, actor string, in dto.ReceiveRequest) error {
	if err := uc.checkCatalog(ctx, in.ItemID, in.LocationID); err != nil {
		return err
	}
	return uc.ledger.Receive(ctx, ReceiveInput{
		ItemID:      in.ItemID,
		LocationID:  in.LocationID,
		Quantity:    in.Quantity,
		BatchNumber: in.BatchNumber,
		ExpiresAt:   in.ExpiresAt,
		Actor:       actor,
	})
}

// IssueFromRequest valida catálogo y ejecuta Issue.
func (uc *RegisterMovementUseCase) IssueFromRequest(ctx context.Context, actor string, in dto.IssueRequest) error {
	if err := uc.checkCatalog(ctx, in.ItemID, in.LocationID); err != nil {
		return err
	}
	return uc.ledger.Issue(ctx, IssueInput{
		ItemID:     in.ItemID,
		LocationID: in.LocationID,
		Quantity:   in.Quantity,
		Actor:      actor,
		Reason:     in.Reason,
	})
}

// TransferFromRequest valida catálogo y ejecuta Transfer.
func (uc *RegisterMovementUseCase) TransferFromRequest(ctx context.Context, actor string, in dto.TransferRequest) error {
	if err := uc.checkCatalog(ctx, in.ItemID, in.FromLocationID, in.ToLocationID); err != nil {
		return err
	}
	return uc.ledger.Transfer(ctx, TransferInput{
		ItemID:         in.ItemID,
		FromLocationID: in.FromLocationID,
		ToLocationID:   in.ToLocationID,
		Quantity:       in.Quantity,
		Actor:          actor,
	})
}

// AdjustFromRequest valida catálogo y ejecuta Adjust.
func (uc *RegisterMovementUseCase) AdjustFromRequest(ctx context.Context, actor string, in dto.AdjustRequest) error {
	if err := uc.checkCatalog(ctx, in.ItemID, in.LocationID); err != nil {
		return err
	}
	return uc.ledger.Adjust(ctx, AdjustInput{
		ItemID:     in.ItemID,
		LocationID: in.LocationID,
		Delta:      in.Delta,
		Actor:      actor,
		Reason:     in.Reason,
	})
}

func (uc *RegisterMovementUseCase) checkCatalog(ctx context.Context, itemID string, locationIDs ...string) error {
	if itemID == "" {
		return fmt.Errorf("%w: item_id es obligatorio", domain.ErrInvalidArgument)
	}
	item, err := uc.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("%w: ítem %s", domain.ErrNotFound, itemID)
	}
	for _, id := range locationIDs {
		if id == "" {
			return fmt.Errorf("%w: ubicación obligatoria", domain.ErrInvalidArgument)
		}
		loc, err := uc.locationRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if loc == nil {
			return fmt.Errorf("%w: ubicación %s", domain.ErrNotFound, id)
		}
	}
	return nil
}
