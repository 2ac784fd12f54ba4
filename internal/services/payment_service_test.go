package services

import (
	"context"
	"errors"
	"fmt"
	"premium-service/internal/gateway"
	"premium-service/internal/models"
	"premium-service/internal/utils"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// ============================================================================
// FAKES
// ============================================================================

type fakePaymentStore struct {
	payments map[uuid.UUID]*models.Payment
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{payments: make(map[uuid.UUID]*models.Payment)}
}

func (f *fakePaymentStore) Create(payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	clone := *payment
	f.payments[payment.ID] = &clone
	return nil
}

func (f *fakePaymentStore) GetByID(id uuid.UUID) (*models.Payment, error) {
	payment, ok := f.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, models.ErrNotFound)
	}
	clone := *payment
	return &clone, nil
}

func (f *fakePaymentStore) GetByProviderRef(providerRef string) (*models.Payment, error) {
	for _, payment := range f.payments {
		if payment.ProviderRef != nil && *payment.ProviderRef == providerRef {
			clone := *payment
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("payment with ref %s: %w", providerRef, models.ErrNotFound)
}

func (f *fakePaymentStore) GetByUserID(userID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, payment := range f.payments {
		if payment.UserID != nil && *payment.UserID == userID {
			out = append(out, *payment)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) SetProviderRef(id uuid.UUID, providerRef string) error {
	f.payments[id].ProviderRef = &providerRef
	return nil
}

func (f *fakePaymentStore) LinkBuyRequest(paymentID, buyRequestID uuid.UUID) error {
	f.payments[paymentID].BuyRequestID = &buyRequestID
	return nil
}

func (f *fakePaymentStore) MarkCompleted(id uuid.UUID, providerRef *string, metadata utils.JSONMap) (bool, error) {
	payment := f.payments[id]
	if payment.Status != models.PaymentPending {
		return false, nil
	}
	payment.Status = models.PaymentCompleted
	payment.Verified = true
	now := time.Now()
	payment.VerifiedAt = &now
	if providerRef != nil {
		payment.ProviderRef = providerRef
	}
	if metadata != nil {
		payment.Metadata = metadata
	}
	return true, nil
}

func (f *fakePaymentStore) MarkFailed(id uuid.UUID, reason string) (bool, error) {
	return f.markTerminal(id, models.PaymentFailed, reason)
}

func (f *fakePaymentStore) MarkCancelled(id uuid.UUID, reason string) (bool, error) {
	return f.markTerminal(id, models.PaymentCancelled, reason)
}

func (f *fakePaymentStore) markTerminal(id uuid.UUID, status models.PaymentStatus, reason string) (bool, error) {
	payment := f.payments[id]
	if payment.Status != models.PaymentPending {
		return false, nil
	}
	payment.Status = status
	payment.FailureReason = &reason
	return true, nil
}

func (f *fakePaymentStore) CountVerifiedByBuyRequest(buyRequestID, excludePaymentID uuid.UUID) (int, error) {
	count := 0
	for _, payment := range f.payments {
		if payment.BuyRequestID != nil && *payment.BuyRequestID == buyRequestID &&
			payment.Verified && payment.ID != excludePaymentID {
			count++
		}
	}
	return count, nil
}

type fakeBuyRequestStore struct {
	buyRequests    map[uuid.UUID]*models.BuyRequest
	renewalUpdates int
}

func newFakeBuyRequestStore() *fakeBuyRequestStore {
	return &fakeBuyRequestStore{buyRequests: make(map[uuid.UUID]*models.BuyRequest)}
}

func (f *fakeBuyRequestStore) Create(buyRequest *models.BuyRequest) error {
	if buyRequest.ID == uuid.Nil {
		buyRequest.ID = uuid.New()
	}
	clone := *buyRequest
	f.buyRequests[buyRequest.ID] = &clone
	return nil
}

func (f *fakeBuyRequestStore) GetByID(id uuid.UUID) (*models.BuyRequest, error) {
	buyRequest, ok := f.buyRequests[id]
	if !ok {
		return nil, fmt.Errorf("buy request %s: %w", id, models.ErrNotFound)
	}
	clone := *buyRequest
	return &clone, nil
}

func (f *fakeBuyRequestStore) UpdateRenewal(id uuid.UUID, nextRenewalDate time.Time, status models.RenewalStatus) error {
	buyRequest := f.buyRequests[id]
	buyRequest.NextRenewalDate = nextRenewalDate
	buyRequest.RenewalStatus = status
	f.renewalUpdates++
	return nil
}

type fakeIntentStore struct {
	intents map[uuid.UUID]*models.PaymentIntent
}

func newFakeIntentStore() *fakeIntentStore {
	return &fakeIntentStore{intents: make(map[uuid.UUID]*models.PaymentIntent)}
}

func (f *fakeIntentStore) GetByID(id uuid.UUID) (*models.PaymentIntent, error) {
	intent, ok := f.intents[id]
	if !ok {
		return nil, fmt.Errorf("payment intent %s: %w", id, models.ErrNotFound)
	}
	clone := *intent
	return &clone, nil
}

func (f *fakeIntentStore) SetBuyRequestID(id, buyRequestID uuid.UUID) (bool, error) {
	intent := f.intents[id]
	if intent.BuyRequestID != nil {
		return false, nil
	}
	intent.BuyRequestID = &buyRequestID
	return true, nil
}

type fakePolicyGetter struct {
	policy *models.Policy
}

func (f *fakePolicyGetter) GetPolicy(_ context.Context, id uuid.UUID) (*models.Policy, error) {
	if f.policy == nil || f.policy.ID != id {
		return nil, fmt.Errorf("policy %s: %w", id, models.ErrNotFound)
	}
	return f.policy, nil
}

type fakeNotifier struct {
	successes int
	failures  int
}

func (f *fakeNotifier) NotifyPaymentSuccess(_ context.Context, _, _ string, _ float64) error {
	f.successes++
	return nil
}

func (f *fakeNotifier) NotifyPaymentFailed(_ context.Context, _, _ string) error {
	f.failures++
	return nil
}

// fakeGateway references payments by the local id carried in the "pid" query
// parameter.
type fakeGateway struct {
	verifyErr   error
	verifyCalls int
	initiateErr error
	providerRef string
}

func (f *fakeGateway) Name() models.PaymentGateway { return models.GatewayEsewa }

func (f *fakeGateway) Initiate(_ context.Context, in gateway.InitiateInput) (*gateway.InitiateResult, error) {
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return &gateway.InitiateResult{
		FormURL:     "https://pay.example/form",
		FormFields:  map[string]string{"transaction_uuid": in.PaymentID.String()},
		ProviderRef: f.providerRef,
	}, nil
}

func (f *fakeGateway) ExtractReference(query map[string]string) (*gateway.CallbackReference, error) {
	pid := query["pid"]
	if pid == "" {
		return nil, models.ErrMissingReference
	}
	paymentID, err := uuid.Parse(pid)
	if err != nil {
		return nil, models.ErrMissingReference
	}
	return &gateway.CallbackReference{PaymentID: paymentID, ReportedStatus: query["status"]}, nil
}

func (f *fakeGateway) Verify(_ context.Context, _ *gateway.CallbackReference, _ float64) error {
	f.verifyCalls++
	return f.verifyErr
}

// ============================================================================
// FIXTURE
// ============================================================================

type paymentFixture struct {
	service     *PaymentService
	payments    *fakePaymentStore
	buyRequests *fakeBuyRequestStore
	intents     *fakeIntentStore
	gateway     *fakeGateway
	notifier    *fakeNotifier
	policy      *models.Policy
	now         time.Time
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		payments:    newFakePaymentStore(),
		buyRequests: newFakeBuyRequestStore(),
		intents:     newFakeIntentStore(),
		gateway:     &fakeGateway{},
		notifier:    &fakeNotifier{},
		policy:      createTestPolicy(),
		now:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.policy.ID = uuid.New()

	f.service = NewPaymentService(
		f.payments,
		f.buyRequests,
		f.intents,
		&fakePolicyGetter{policy: f.policy},
		map[models.PaymentGateway]gateway.Gateway{models.GatewayEsewa: f.gateway},
		NewRenewalScheduler(15),
		f.notifier,
	)
	f.service.now = func() time.Time { return f.now }
	return f
}

func (f *paymentFixture) addBuyRequest(userID string) *models.BuyRequest {
	buyRequest := &models.BuyRequest{
		ID:              uuid.New(),
		PolicyID:        f.policy.ID,
		UserID:          userID,
		ContactName:     "Sita Sharma",
		BillingCycle:    models.CycleMonthly,
		AnnualPremium:   14850,
		CycleAmount:     1237.50,
		NextRenewalDate: f.now.AddDate(0, 1, 0),
		RenewalStatus:   models.RenewalActive,
	}
	f.buyRequests.Create(buyRequest)
	return buyRequest
}

func (f *paymentFixture) addPendingPayment(buyRequestID uuid.UUID, userID string) *models.Payment {
	payment := &models.Payment{
		ID:           uuid.New(),
		BuyRequestID: &buyRequestID,
		UserID:       &userID,
		Amount:       1237.50,
		Currency:     "NPR",
		Gateway:      models.GatewayEsewa,
		Status:       models.PaymentPending,
	}
	f.payments.Create(payment)
	return payment
}

func (f *paymentFixture) addVerifiedPayment(buyRequestID uuid.UUID, userID string) *models.Payment {
	payment := &models.Payment{
		ID:           uuid.New(),
		BuyRequestID: &buyRequestID,
		UserID:       &userID,
		Amount:       1237.50,
		Currency:     "NPR",
		Gateway:      models.GatewayEsewa,
		Status:       models.PaymentCompleted,
		Verified:     true,
	}
	f.payments.Create(payment)
	return payment
}

func successQuery(paymentID uuid.UUID) map[string]string {
	return map[string]string{"pid": paymentID.String(), "status": "COMPLETE"}
}

// ============================================================================
// TEST SUITE 1: SUCCESS RECONCILIATION
// ============================================================================

func TestHandleSuccessReturn_CompletesPendingPayment(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")
	payment := f.addPendingPayment(buyRequest.ID, "user-1")

	outcome, err := f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, successQuery(payment.ID))

	assert.NoError(t, err)
	assert.True(t, outcome.Succeeded)
	assert.Equal(t, 1, f.gateway.verifyCalls)

	stored, _ := f.payments.GetByID(payment.ID)
	assert.Equal(t, models.PaymentCompleted, stored.Status)
	assert.True(t, stored.Verified)
	assert.Equal(t, 1, f.notifier.successes)

	// The initiating purchase payment keeps the due date set at creation.
	assert.Equal(t, 0, f.buyRequests.renewalUpdates)
}

func TestHandleSuccessReturn_DuplicateCallbackIsNoOp(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")
	payment := f.addPendingPayment(buyRequest.ID, "user-1")
	query := successQuery(payment.ID)

	first, err := f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, query)
	assert.NoError(t, err)
	assert.True(t, first.Succeeded)

	second, err := f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, query)
	assert.NoError(t, err)
	assert.True(t, second.Succeeded)

	// Side effects ran exactly once.
	assert.Equal(t, 1, f.gateway.verifyCalls)
	assert.Equal(t, 1, f.notifier.successes)
	assert.Equal(t, 0, f.buyRequests.renewalUpdates)
}

func TestHandleSuccessReturn_VerificationFailedSettlesPayment(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")
	payment := f.addPendingPayment(buyRequest.ID, "user-1")
	f.gateway.verifyErr = fmt.Errorf("gateway says no: %w", models.ErrVerificationFailed)

	outcome, err := f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, successQuery(payment.ID))

	assert.NoError(t, err)
	assert.False(t, outcome.Succeeded)

	stored, _ := f.payments.GetByID(payment.ID)
	assert.Equal(t, models.PaymentFailed, stored.Status)
	assert.False(t, stored.Verified)
	assert.Equal(t, 1, f.notifier.failures)
}

func TestHandleSuccessReturn_TransientVerifyErrorLeavesPending(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")
	payment := f.addPendingPayment(buyRequest.ID, "user-1")
	f.gateway.verifyErr = errors.New("connection refused")

	_, err := f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, successQuery(payment.ID))

	assert.Error(t, err)

	// Pending, so a later retry of the return can still settle it.
	stored, _ := f.payments.GetByID(payment.ID)
	assert.Equal(t, models.PaymentPending, stored.Status)
	assert.Equal(t, 0, f.notifier.successes)
	assert.Equal(t, 0, f.notifier.failures)
}

func TestHandleSuccessReturn_UnknownReference(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, map[string]string{})
	assert.ErrorIs(t, err, models.ErrMissingReference)

	_, err = f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, successQuery(uuid.New()))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// ============================================================================
// TEST SUITE 2: INTENT MATERIALIZATION
// ============================================================================

func TestHandleSuccessReturn_MaterializesBuyRequestFromIntent(t *testing.T) {
	f := newPaymentFixture()
	userID := "user-1"
	email := "sita@example.com"

	intent := &models.PaymentIntent{
		ID:            uuid.New(),
		PolicyID:      f.policy.ID,
		UserID:        &userID,
		Email:         &email,
		BillingCycle:  models.CycleQuarterly,
		AnnualPremium: 14850,
		CycleAmount:   3712.50,
	}
	f.intents.intents[intent.ID] = intent

	payment := &models.Payment{
		ID:              uuid.New(),
		PaymentIntentID: &intent.ID,
		UserID:          &userID,
		Amount:          intent.CycleAmount,
		Currency:        "NPR",
		Gateway:         models.GatewayEsewa,
		Status:          models.PaymentPending,
	}
	f.payments.Create(payment)

	outcome, err := f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, successQuery(payment.ID))

	assert.NoError(t, err)
	assert.True(t, outcome.Succeeded)

	// The intent now points at exactly one buy request.
	storedIntent, _ := f.intents.GetByID(intent.ID)
	assert.NotNil(t, storedIntent.BuyRequestID)

	buyRequest, err := f.buyRequests.GetByID(*storedIntent.BuyRequestID)
	assert.NoError(t, err)
	assert.Equal(t, intent.PolicyID, buyRequest.PolicyID)
	assert.Equal(t, intent.CycleAmount, buyRequest.CycleAmount)
	assert.Equal(t, models.RenewalActive, buyRequest.RenewalStatus)
	assert.Equal(t, models.CycleQuarterly.AddPeriod(f.now), buyRequest.NextRenewalDate)

	// The payment is linked to the materialized buy request.
	storedPayment, _ := f.payments.GetByID(payment.ID)
	assert.Equal(t, storedIntent.BuyRequestID, storedPayment.BuyRequestID)
}

func TestHandleSuccessReturn_IntentMaterializesOnlyOnce(t *testing.T) {
	f := newPaymentFixture()
	userID := "user-1"

	intent := &models.PaymentIntent{
		ID:            uuid.New(),
		PolicyID:      f.policy.ID,
		UserID:        &userID,
		BillingCycle:  models.CycleMonthly,
		AnnualPremium: 14850,
		CycleAmount:   1237.50,
	}
	f.intents.intents[intent.ID] = intent

	makePayment := func() *models.Payment {
		payment := &models.Payment{
			ID:              uuid.New(),
			PaymentIntentID: &intent.ID,
			UserID:          &userID,
			Amount:          intent.CycleAmount,
			Currency:        "NPR",
			Gateway:         models.GatewayEsewa,
			Status:          models.PaymentPending,
		}
		f.payments.Create(payment)
		return payment
	}

	first := makePayment()
	second := makePayment()

	_, err := f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, successQuery(first.ID))
	assert.NoError(t, err)
	_, err = f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, successQuery(second.ID))
	assert.NoError(t, err)

	storedIntent, _ := f.intents.GetByID(intent.ID)
	assert.NotNil(t, storedIntent.BuyRequestID)

	// Both payments resolve to the same buy request.
	firstStored, _ := f.payments.GetByID(first.ID)
	secondStored, _ := f.payments.GetByID(second.ID)
	assert.Equal(t, storedIntent.BuyRequestID, firstStored.BuyRequestID)
	assert.Equal(t, storedIntent.BuyRequestID, secondStored.BuyRequestID)
}

// ============================================================================
// TEST SUITE 3: RENEWALS
// ============================================================================

func TestHandleSuccessReturn_RenewalAdvancesDueDate(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")
	f.addVerifiedPayment(buyRequest.ID, "user-1") // the initiating purchase

	renewal := f.addPendingPayment(buyRequest.ID, "user-1")

	outcome, err := f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, successQuery(renewal.ID))

	assert.NoError(t, err)
	assert.True(t, outcome.Succeeded)
	assert.Equal(t, 1, f.buyRequests.renewalUpdates)

	// Due date was a month out; paying early anchors from it.
	stored, _ := f.buyRequests.GetByID(buyRequest.ID)
	assert.Equal(t, f.now.AddDate(0, 2, 0), stored.NextRenewalDate)
	assert.Equal(t, models.RenewalActive, stored.RenewalStatus)
}

func TestInitiateForBuyRequest_RenewalBlockedPastGrace(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")
	f.addVerifiedPayment(buyRequest.ID, "user-1")

	// Push the due date 16 days behind "now" with a 15-day grace.
	f.buyRequests.buyRequests[buyRequest.ID].NextRenewalDate = f.now.AddDate(0, 0, -16)

	_, err := f.service.InitiateForBuyRequest(context.Background(), models.GatewayEsewa, buyRequest.ID, "user-1")

	assert.ErrorIs(t, err, models.ErrRenewalBlocked)
}

func TestInitiateForBuyRequest_FirstPaymentNotTreatedAsRenewal(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")

	// Even far past the due date, the initiating purchase payment is not a
	// renewal and is never blocked.
	f.buyRequests.buyRequests[buyRequest.ID].NextRenewalDate = f.now.AddDate(0, -2, 0)

	resp, err := f.service.InitiateForBuyRequest(context.Background(), models.GatewayEsewa, buyRequest.ID, "user-1")

	assert.NoError(t, err)
	assert.NotEmpty(t, resp.FormURL)

	stored, _ := f.payments.GetByID(resp.PaymentID)
	assert.False(t, stored.IsRenewal)
}

// ============================================================================
// TEST SUITE 4: INITIATION, FAILURE & CANCELLATION
// ============================================================================

func TestInitiateForBuyRequest_OwnershipEnforced(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")

	_, err := f.service.InitiateForBuyRequest(context.Background(), models.GatewayEsewa, buyRequest.ID, "someone-else")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestInitiateForBuyRequest_UnknownGateway(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")

	_, err := f.service.InitiateForBuyRequest(context.Background(), models.GatewayKhalti, buyRequest.ID, "user-1")

	assert.ErrorIs(t, err, models.ErrGatewayConfigMissing)
}

func TestInitiate_GatewayErrorMarksPaymentFailed(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")
	f.gateway.initiateErr = errors.New("provider down")

	_, err := f.service.InitiateForBuyRequest(context.Background(), models.GatewayEsewa, buyRequest.ID, "user-1")

	assert.Error(t, err)

	// The pending row was still written and then settled as failed.
	for _, payment := range f.payments.payments {
		assert.Equal(t, models.PaymentFailed, payment.Status)
	}
}

func TestHandleFailureReturn_SettlesPaymentFailed(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")
	payment := f.addPendingPayment(buyRequest.ID, "user-1")

	outcome, err := f.service.HandleFailureReturn(context.Background(), models.GatewayEsewa,
		map[string]string{"pid": payment.ID.String(), "status": "FAILED"})

	assert.NoError(t, err)
	assert.False(t, outcome.Succeeded)

	stored, _ := f.payments.GetByID(payment.ID)
	assert.Equal(t, models.PaymentFailed, stored.Status)
	assert.Equal(t, 1, f.notifier.failures)
	assert.Equal(t, 0, f.gateway.verifyCalls)
}

func TestHandleFailureReturn_AfterCompletionIsNoOp(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")
	payment := f.addPendingPayment(buyRequest.ID, "user-1")

	_, err := f.service.HandleSuccessReturn(context.Background(), models.GatewayEsewa, successQuery(payment.ID))
	assert.NoError(t, err)

	// A stray failure redirect for an already-completed payment changes
	// nothing.
	outcome, err := f.service.HandleFailureReturn(context.Background(), models.GatewayEsewa,
		map[string]string{"pid": payment.ID.String()})

	assert.NoError(t, err)
	assert.True(t, outcome.Succeeded)

	stored, _ := f.payments.GetByID(payment.ID)
	assert.Equal(t, models.PaymentCompleted, stored.Status)
}

func TestCancelPayment(t *testing.T) {
	f := newPaymentFixture()
	buyRequest := f.addBuyRequest("user-1")
	payment := f.addPendingPayment(buyRequest.ID, "user-1")

	cancelled, err := f.service.CancelPayment(context.Background(), payment.ID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentCancelled, cancelled.Status)

	// Cancelling a settled payment is a conflict.
	completed := f.addVerifiedPayment(buyRequest.ID, "user-1")
	_, err = f.service.CancelPayment(context.Background(), completed.ID, "user-1")
	assert.ErrorIs(t, err, models.ErrConflict)

	// Cancelling someone else's payment reads as not found.
	other := f.addPendingPayment(buyRequest.ID, "user-1")
	_, err = f.service.CancelPayment(context.Background(), other.ID, "someone-else")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
