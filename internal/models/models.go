package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{}, &Province{}, &AreaGroup{}, &Area{}, &RateSetting{},
		&Client{}, &Product{}, &Vehicle{},
		&DeliveryBatch{}, &DeliveryOrder{}, &DeliveryOrderItem{},
		&DeliveryMilestoneTemplate{}, &DeliveryOrderMilestone{},
		&KPISale{}, &Notification{},
	}
}
