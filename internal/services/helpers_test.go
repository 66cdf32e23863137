package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"delivery_backoffice/internal/geo"
	"delivery_backoffice/internal/models"
)

var testDepot = geo.Point{Lat: 13.7563, Lng: 100.5018}

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []models.Notification
}

func (p *recordingPublisher) Publish(n models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, n)
}

func (p *recordingPublisher) published() []models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Notification(nil), p.got...)
}

// fixture is a small master-data set: two rate groups, three grouped areas
// and one ungrouped area, three located clients, two products, one vehicle
// of each size and a three-stage milestone sequence.
type fixture struct {
	db *gorm.DB

	north, south                  models.AreaGroup
	areaN1, areaN2, areaS1, loose models.Area
	clientA, clientB, clientC     models.Client
	productSmall, productBulky    models.Product
	small, large                  models.Vehicle
	templates                     []models.DeliveryMilestoneTemplate
}

func seedFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{db: db}

	province := models.Province{Code: "BKK", Name: "Bangkok"}
	require.NoError(t, db.Create(&province).Error)

	f.north = models.AreaGroup{Name: "North", BaseRate: 500}
	f.south = models.AreaGroup{Name: "South", BaseRate: 800}
	require.NoError(t, db.Create(&f.north).Error)
	require.NoError(t, db.Create(&f.south).Error)

	f.areaN1 = models.Area{Name: "Chatuchak", ProvinceID: province.ID, AreaGroupID: &f.north.ID}
	f.areaN2 = models.Area{Name: "Phaya Thai", ProvinceID: province.ID, AreaGroupID: &f.north.ID}
	f.areaS1 = models.Area{Name: "Bang Na", ProvinceID: province.ID, AreaGroupID: &f.south.ID}
	f.loose = models.Area{Name: "Unzoned", ProvinceID: province.ID}
	for _, a := range []*models.Area{&f.areaN1, &f.areaN2, &f.areaS1, &f.loose} {
		require.NoError(t, db.Create(a).Error)
	}

	for key, amount := range map[string]float64{
		models.RateDropSameZone:    100,
		models.RateDropOtherZone:   200,
		models.RateAdvanceDelivery: 300,
	} {
		require.NoError(t, db.Create(&models.RateSetting{Key: key, Label: key, Amount: amount}).Error)
	}

	f.clientA = newClient(t, db, "A001", "Far Mart", f.areaN1, 13.80, 100.55)
	f.clientB = newClient(t, db, "B001", "Near Shop", f.areaN2, 13.76, 100.51)
	f.clientC = newClient(t, db, "C001", "South Store", f.areaS1, 13.66, 100.60)

	f.productSmall = models.Product{SKU: "SKU-S", Name: "Carton", Unit: "box", Price: 100, Volume: 0.5}
	f.productBulky = models.Product{SKU: "SKU-B", Name: "Pallet", Unit: "pallet", Price: 1000, Volume: 5}
	require.NoError(t, db.Create(&f.productSmall).Error)
	require.NoError(t, db.Create(&f.productBulky).Error)

	f.small = models.Vehicle{PlateNo: "1AB-1111", Type: models.VehicleSmall, Capacity: 8}
	f.large = models.Vehicle{PlateNo: "2CD-2222", Type: models.VehicleLarge, Capacity: 30}
	require.NoError(t, db.Create(&f.small).Error)
	require.NoError(t, db.Create(&f.large).Error)

	f.templates = []models.DeliveryMilestoneTemplate{
		{Name: "Packing", Sequence: 1, StandardDuration: 2},
		{Name: "Loading", Sequence: 2, StandardDuration: 1},
		{Name: "Delivery", Sequence: 3, StandardDuration: 3},
	}
	require.NoError(t, db.Create(&f.templates).Error)
	return f
}

func newClient(t *testing.T, db *gorm.DB, code, name string, area models.Area, lat, lng float64) models.Client {
	t.Helper()
	loc, err := geo.EncodePoint(geo.Point{Lat: lat, Lng: lng})
	require.NoError(t, err)
	c := models.Client{Code: code, Name: name, ProvinceID: area.ProvinceID, AreaID: area.ID, Location: loc}
	require.NoError(t, db.Create(&c).Error)
	return c
}

// stack wires every service against db with a fixed clock.
type stack struct {
	pub        *recordingPublisher
	notifier   *NotificationService
	rates      *RateService
	milestones *MilestoneService
	orders     *OrderService
	planner    *PlannerService
	kpi        *KPIService
}

func newStack(db *gorm.DB, now time.Time) *stack {
	s := &stack{pub: &recordingPublisher{}}
	clock := func() time.Time { return now }
	s.notifier = NewNotificationService(db, s.pub)
	s.notifier.now = clock
	s.rates = NewRateService(db, nil)
	s.milestones = NewMilestoneService(db, s.notifier)
	s.milestones.now = clock
	s.orders = NewOrderService(db, s.rates, s.milestones, s.notifier)
	s.orders.now = clock
	s.planner = NewPlannerService(db, PlannerConfig{MaxOrdersPerBatch: 10, LargeVehicleThreshold: 8, Depot: testDepot}, s.notifier)
	s.planner.now = clock
	s.kpi = NewKPIService(db)
	return s
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func orderInput(client models.Client, delivery time.Time, items ...OrderItemInput) OrderInput {
	orderDate := utc(2026, 10, 20, 8, 0)
	return OrderInput{
		PONumber:     "PO-" + client.Code,
		ClientID:     client.ID,
		OrderDate:    &orderDate,
		DeliveryDate: delivery,
		Items:        items,
	}
}
