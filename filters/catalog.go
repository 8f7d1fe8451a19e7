package filters

import "relate/model/model"

// FieldCatalog The static filter field catalog: every logical field with its
// value type and the operator set the registry supports for it. Tenant
// specific option lists (tags, agents, pipeline stages) are composed on top by
// the metadata service.
func FieldCatalog() []model.FieldDescriptor {
	fields := []struct {
		id    string
		label string
		typ   string
	}{
		{model.FieldStatus, "Status", model.FieldTypeCategorical},
		{model.FieldEmail, "Email", model.FieldTypeText},
		{model.FieldPhone, "Phone", model.FieldTypeText},
		{model.FieldCompany, "Company", model.FieldTypeText},
		{model.FieldAssignedTo, "Assigned to", model.FieldTypeCategorical},
		{model.FieldCreatedAt, "Created at", model.FieldTypeDatetime},
		{model.FieldTags, "Tags", model.FieldTypeMultiSelect},
		{model.FieldActivity, "Activity", model.FieldTypeDatetime},
		{model.FieldDealStage, "Deal stage", model.FieldTypeCategorical},
		{model.FieldBookingStatus, "Booking status", model.FieldTypeCategorical},
		{model.FieldCampaignEmail, "Campaign email", model.FieldTypeDatetime},
		{model.FieldCustomField, "Custom field", model.FieldTypeText},
	}

	catalog := make([]model.FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		catalog = append(catalog, model.FieldDescriptor{
			ID:        f.id,
			Label:     f.label,
			Type:      f.typ,
			Operators: SupportedOperators(f.id),
		})
	}
	return catalog
}
