// ABOUTME: Declarative catalog of ARIA tools: name, schema, binding, output columns.
// ABOUTME: Gateway and REST handlers are generated from the table, not hand-written.

package tools

import (
	"context"
	"net/url"
	"strconv"

	"github.com/oncolink/aria-gateway/internal/aria"
)

// CapWrite guards tools that create or modify clinical records.
const CapWrite = "write"

// Executor is the slice of the ARIA client the generated handlers use.
type Executor interface {
	Execute(ctx context.Context, path string, body any, query url.Values) (any, error)
	Process(ctx context.Context, requestType string, fields map[string]any) (any, error)
}

// SessionControl is the slice of the ARIA session the admin tools use.
type SessionControl interface {
	SetCredentials(creds aria.Credentials)
	Token(ctx context.Context) (string, error)
	Status() aria.SessionStatus
}

// fieldDefault selects what a gateway binding sends when the caller omits an
// optional argument. The remote API distinguishes "field omitted" from "field
// explicitly null", so an absent argument still produces a wrapped cell; each
// field's documented default decides whether that cell is "" or null.
type fieldDefault int

const (
	defaultEmpty fieldDefault = iota
	defaultNull
)

// gatewayField binds one tool argument to one envelope field.
type gatewayField struct {
	Field   string // envelope field name (remote spelling)
	Arg     string // tool argument name
	Default fieldDefault
}

// toolSpec is one row of the catalog table. Exactly one of RequestType and
// RestPath is set.
type toolSpec struct {
	Name        string
	Description string
	Schema      string
	Caps        []string

	// Gateway binding: typed request through the Process endpoint.
	RequestType string
	Fields      []gatewayField

	// REST binding: GET against a resource path with query filters.
	RestPath  string
	QueryArgs []string

	Columns []column
}

func field(envelope, arg string) gatewayField {
	return gatewayField{Field: envelope, Arg: arg}
}

func nullField(envelope, arg string) gatewayField {
	return gatewayField{Field: envelope, Arg: arg, Default: defaultNull}
}

func col(label, field string) column {
	return column{Label: label, Field: field}
}

// catalog is the declarative tool table. Adding a tool means adding a row.
func catalog() []toolSpec {
	return []toolSpec{
		{
			Name:        "search_patients",
			Description: "Search for patients by identifier or name",
			Schema:      `{"type":"object","properties":{"patient_id_1":{"type":"string","description":"Primary patient identifier"},"patient_id_2":{"type":"string","description":"Secondary patient identifier"},"first_name":{"type":"string"},"last_name":{"type":"string"}}}`,
			RequestType: "GetPatientsRequest",
			Fields: []gatewayField{
				field("PatientId1", "patient_id_1"),
				field("PatientId2", "patient_id_2"),
				field("FirstName", "first_name"),
				field("LastName", "last_name"),
			},
			Columns: []column{col("ID", "PatientId"), col("Last", "LastName"), col("First", "FirstName"), col("DOB", "DateOfBirth"), col("Sex", "Sex")},
		},
		{
			Name:        "get_patient_demographics",
			Description: "Get demographic details for a patient",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetPatientDemographicsRequest",
			Fields:      []gatewayField{field("PatientId", "patient_id")},
			Columns: []column{
				col("ID", "PatientId"), col("Last", "LastName"), col("First", "FirstName"),
				col("DOB", "DateOfBirth"), col("Sex", "Sex"), col("Address", "Address1"),
				col("City", "City"), col("Phone", "HomePhone"),
			},
		},
		{
			Name:        "get_patient_diagnoses",
			Description: "List diagnoses recorded for a patient",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetDiagnosesRequest",
			Fields:      []gatewayField{field("PatientId", "patient_id")},
			Columns:     []column{col("Code", "DiagnosisCode"), col("Description", "DiagnosisDescription"), col("Date", "DiagnosisDate"), col("Status", "ClinicalStatus")},
		},
		{
			Name:        "get_patient_allergies",
			Description: "List allergy records for a patient",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetAllergyInfoRequest",
			Fields:      []gatewayField{field("PatientId", "patient_id")},
			Columns:     []column{col("Allergen", "AllergenName"), col("Severity", "Severity"), col("Reaction", "Reaction"), col("Noted", "DateNoted")},
		},
		{
			Name:        "get_patient_courses",
			Description: "List treatment courses for a patient",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetPatientCoursesRequest",
			Fields:      []gatewayField{field("PatientId", "patient_id")},
			Columns:     []column{col("Course", "CourseId"), col("Intent", "Intent"), col("Start", "StartDateTime"), col("Status", "ClinicalStatus")},
		},
		{
			Name:        "get_patient_plans",
			Description: "List treatment plans for a patient course",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"course_id":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetPatientPlansRequest",
			Fields:      []gatewayField{field("PatientId", "patient_id"), field("CourseId", "course_id")},
			Columns:     []column{col("Plan", "PlanId"), col("Course", "CourseId"), col("Status", "PlanStatus"), col("Fractions", "NoOfFractions"), col("Total dose", "TotalDose")},
		},
		{
			Name:        "get_plan_treatment_fields",
			Description: "List treatment fields (beams) for a plan",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"course_id":{"type":"string"},"plan_id":{"type":"string"}},"required":["patient_id","course_id","plan_id"]}`,
			RequestType: "GetPlanTreatmentFieldsRequest",
			Fields: []gatewayField{
				field("PatientId", "patient_id"),
				field("CourseId", "course_id"),
				field("PlanId", "plan_id"),
			},
			Columns: []column{col("Field", "FieldId"), col("Machine", "TreatmentMachine"), col("Energy", "EnergyMode"), col("MU", "MonitorUnits"), col("Gantry", "GantryAngle")},
		},
		{
			Name:        "get_treatment_history",
			Description: "Get treated-field history for a patient in a date range",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"start_date":{"type":"string","description":"YYYY-MM-DD"},"end_date":{"type":"string","description":"YYYY-MM-DD"}},"required":["patient_id"]}`,
			RequestType: "GetPatientFieldTreatedInfoRequest",
			Fields: []gatewayField{
				field("PatientId", "patient_id"),
				nullField("StartDate", "start_date"),
				nullField("EndDate", "end_date"),
			},
			Columns: []column{col("Date", "TreatmentDateTime"), col("Field", "FieldId"), col("Machine", "MachineId"), col("MU", "DeliveredMU")},
		},
		{
			Name:        "get_treatment_dates",
			Description: "List the dates on which a patient was treated",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetPatientsTreatmentDatesRequest",
			Fields:      []gatewayField{field("PatientId", "patient_id")},
			Columns:     []column{col("Date", "TreatmentDate"), col("Course", "CourseId"), col("Plan", "PlanId")},
		},
		{
			Name:        "get_patient_ref_points",
			Description: "List reference points and accumulated doses for a course",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"course_id":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetPatientRefPointsRequest",
			Fields:      []gatewayField{field("PatientId", "patient_id"), field("CourseId", "course_id")},
			Columns:     []column{col("Point", "RefPointId"), col("Total dose", "TotalDoseDelivered"), col("Limit", "TotalDoseLimit"), col("Unit", "DoseUnit")},
		},
		{
			Name:        "get_prescriptions",
			Description: "List prescriptions for a patient course",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"course_id":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetPatientPrescriptionsRequest",
			Fields:      []gatewayField{field("PatientId", "patient_id"), field("CourseId", "course_id")},
			Columns:     []column{col("Prescription", "PrescriptionName"), col("Site", "SiteName"), col("Dose/fraction", "DosePerFraction"), col("Fractions", "NoOfFractions")},
		},
		{
			Name:        "get_patient_appointments",
			Description: "List scheduled appointments for a patient in a date range",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"start_date":{"type":"string"},"end_date":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetPatientAppointmentsRequest",
			Fields: []gatewayField{
				field("PatientId", "patient_id"),
				nullField("StartDate", "start_date"),
				nullField("EndDate", "end_date"),
			},
			Columns: []column{col("Start", "AppointmentStartDateTime"), col("End", "AppointmentEndDateTime"), col("Activity", "ActivityName"), col("Resource", "ResourceName"), col("Status", "AppointmentStatus")},
		},
		{
			Name:        "get_machine_appointments",
			Description: "List appointments scheduled on a treatment machine",
			Schema:      `{"type":"object","properties":{"machine_id":{"type":"string"},"start_date":{"type":"string"},"end_date":{"type":"string"}},"required":["machine_id"]}`,
			RequestType: "GetMachineAppointmentsRequest",
			Fields: []gatewayField{
				field("MachineId", "machine_id"),
				nullField("StartDate", "start_date"),
				nullField("EndDate", "end_date"),
			},
			Columns: []column{col("Start", "AppointmentStartDateTime"), col("Patient", "PatientId"), col("Activity", "ActivityName"), col("Status", "AppointmentStatus")},
		},
		{
			Name:        "get_machine_list",
			Description: "List treatment machines for a department",
			Schema:      `{"type":"object","properties":{"department_id":{"type":"string"}}}`,
			RequestType: "GetMachineListRequest",
			Fields:      []gatewayField{field("DepartmentId", "department_id")},
			Columns:     []column{col("Machine", "MachineId"), col("Name", "MachineName"), col("Type", "MachineType"), col("Department", "DepartmentId")},
		},
		{
			Name:        "get_doctors_list",
			Description: "List doctors known to the clinical system",
			Schema:      `{"type":"object","properties":{}}`,
			RequestType: "GetDoctorsListRequest",
			Columns:     []column{col("ID", "DoctorId"), col("Last", "LastName"), col("First", "FirstName"), col("Specialty", "Specialty"), col("Oncologist", "IsOncologist")},
		},
		{
			Name:        "get_hospital_list",
			Description: "List hospitals known to the clinical system",
			Schema:      `{"type":"object","properties":{}}`,
			RequestType: "GetHospitalListRequest",
			Columns:     []column{col("ID", "HospitalId"), col("Name", "HospitalName"), col("Location", "Location")},
		},
		{
			Name:        "get_department_list",
			Description: "List departments, optionally for one hospital",
			Schema:      `{"type":"object","properties":{"hospital_id":{"type":"string"}}}`,
			RequestType: "GetDepartmentListRequest",
			Fields:      []gatewayField{field("HospitalId", "hospital_id")},
			Columns:     []column{col("ID", "DepartmentId"), col("Name", "DepartmentName"), col("Hospital", "HospitalId")},
		},
		{
			Name:        "get_imaging_info",
			Description: "List imaging studies for a patient",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetImagingInfoRequest",
			Fields:      []gatewayField{field("PatientId", "patient_id")},
			Columns:     []column{col("Study", "StudyId"), col("Modality", "Modality"), col("Date", "StudyDateTime"), col("Description", "StudyDescription")},
		},
		{
			Name:        "get_lab_results",
			Description: "List laboratory results for a patient in a date range",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"start_date":{"type":"string"},"end_date":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetLabResultsRequest",
			Fields: []gatewayField{
				field("PatientId", "patient_id"),
				nullField("StartDate", "start_date"),
				nullField("EndDate", "end_date"),
			},
			Columns: []column{col("Test", "TestName"), col("Result", "ResultValue"), col("Unit", "ResultUnit"), col("Range", "ReferenceRange"), col("Date", "ObservationDateTime")},
		},
		{
			Name:        "get_vital_signs",
			Description: "List vital sign observations for a patient",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"start_date":{"type":"string"},"end_date":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetVitalSignsRequest",
			Fields: []gatewayField{
				field("PatientId", "patient_id"),
				nullField("StartDate", "start_date"),
				nullField("EndDate", "end_date"),
			},
			Columns: []column{col("Vital", "VitalSignName"), col("Value", "ObservedValue"), col("Unit", "Unit"), col("Date", "ObservationDateTime")},
		},
		{
			Name:        "get_field_summaries",
			Description: "Get per-field delivery summaries for a patient course",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"course_id":{"type":"string"}},"required":["patient_id"]}`,
			RequestType: "GetFieldTreatedSummariesRequest",
			Fields:      []gatewayField{field("PatientId", "patient_id"), field("CourseId", "course_id")},
			Columns:     []column{col("Field", "FieldId"), col("Fractions treated", "FractionsTreated"), col("Last treated", "LastTreatedDateTime")},
		},
		{
			Name:        "create_patient",
			Description: "Register a new patient",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"first_name":{"type":"string"},"last_name":{"type":"string"},"date_of_birth":{"type":"string","description":"YYYY-MM-DD"},"sex":{"type":"string","enum":["Male","Female","Other","Unknown"]}},"required":["patient_id","first_name","last_name"]}`,
			Caps:        []string{CapWrite},
			RequestType: "CreatePatientRequest",
			Fields: []gatewayField{
				field("PatientId", "patient_id"),
				field("FirstName", "first_name"),
				field("LastName", "last_name"),
				nullField("DateOfBirth", "date_of_birth"),
				nullField("Sex", "sex"),
			},
			Columns: []column{col("ID", "PatientId"), col("Status", "Status")},
		},
		{
			Name:        "update_patient",
			Description: "Update demographic fields on an existing patient",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"first_name":{"type":"string"},"last_name":{"type":"string"},"date_of_birth":{"type":"string"},"sex":{"type":"string"}},"required":["patient_id"]}`,
			Caps:        []string{CapWrite},
			RequestType: "UpdatePatientRequest",
			Fields: []gatewayField{
				field("PatientId", "patient_id"),
				nullField("FirstName", "first_name"),
				nullField("LastName", "last_name"),
				nullField("DateOfBirth", "date_of_birth"),
				nullField("Sex", "sex"),
			},
		},
		{
			Name:        "create_appointment",
			Description: "Schedule an appointment for a patient",
			Schema:      `{"type":"object","properties":{"patient_id":{"type":"string"},"activity_name":{"type":"string"},"start_datetime":{"type":"string","description":"ISO 8601"},"end_datetime":{"type":"string","description":"ISO 8601"},"resource_id":{"type":"string"}},"required":["patient_id","activity_name","start_datetime","end_datetime"]}`,
			Caps:        []string{CapWrite},
			RequestType: "CreatePatientAppointmentRequest",
			Fields: []gatewayField{
				field("PatientId", "patient_id"),
				field("ActivityName", "activity_name"),
				field("AppointmentStartDateTime", "start_datetime"),
				field("AppointmentEndDateTime", "end_datetime"),
				nullField("ResourceId", "resource_id"),
			},
		},
		{
			Name:        "list_patients",
			Description: "List patients via the plain REST endpoint",
			Schema:      `{"type":"object","properties":{"search":{"type":"string"},"limit":{"type":"integer","minimum":1}}}`,
			RestPath:    "/patients",
			QueryArgs:   []string{"search", "limit"},
			Columns:     []column{col("ID", "patientId"), col("Name", "name"), col("DOB", "dateOfBirth")},
		},
		{
			Name:        "list_resources",
			Description: "List bookable resources (machines, rooms, staff)",
			Schema:      `{"type":"object","properties":{"type":{"type":"string","enum":["machine","room","staff"]}}}`,
			RestPath:    "/resources",
			QueryArgs:   []string{"type"},
			Columns:     []column{col("ID", "resourceId"), col("Name", "name"), col("Type", "type")},
		},
		{
			Name:        "list_billing",
			Description: "List billing entries for a patient in a date range",
			Schema:      `{"type":"object","properties":{"patientId":{"type":"string"},"from":{"type":"string"},"to":{"type":"string"}},"required":["patientId"]}`,
			RestPath:    "/billing",
			QueryArgs:   []string{"patientId", "from", "to"},
			Columns:     []column{col("Code", "procedureCode"), col("Description", "description"), col("Date", "serviceDate"), col("Amount", "amount")},
		},
	}
}

// Catalog builds the complete tool set: the generated table tools plus the
// session administration tools.
func Catalog(exec Executor, session SessionControl) []*Tool {
	specs := catalog()
	ts := make([]*Tool, 0, len(specs)+2)
	for _, spec := range specs {
		ts = append(ts, spec.tool(exec))
	}
	ts = append(ts, authenticateTool(session), connectionStatusTool(session))
	return ts
}

func (spec toolSpec) tool(exec Executor) *Tool {
	var handler Handler
	if spec.RequestType != "" {
		handler = makeGatewayHandler(exec, spec)
	} else {
		handler = makeRESTHandler(exec, spec)
	}
	return &Tool{
		Name:                 spec.Name,
		Description:          spec.Description,
		InputSchema:          spec.Schema,
		RequiredCapabilities: spec.Caps,
		Handler:              handler,
	}
}

func makeGatewayHandler(exec Executor, spec toolSpec) Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		fields := make(map[string]any, len(spec.Fields))
		for _, f := range spec.Fields {
			if v, ok := args[f.Arg]; ok {
				fields[f.Field] = v
				continue
			}
			if f.Default == defaultNull {
				fields[f.Field] = nil
			} else {
				fields[f.Field] = ""
			}
		}
		resp, err := exec.Process(ctx, spec.RequestType, fields)
		if err != nil {
			return "", err
		}
		return renderResponse(resp, spec.Columns)
	}
}

func makeRESTHandler(exec Executor, spec toolSpec) Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		query := url.Values{}
		for _, arg := range spec.QueryArgs {
			if v, ok := args[arg]; ok {
				query.Set(arg, queryValue(v))
			}
		}
		resp, err := exec.Execute(ctx, spec.RestPath, nil, query)
		if err != nil {
			return "", err
		}
		return renderResponse(resp, spec.Columns)
	}
}

func renderResponse(resp any, cols []column) (string, error) {
	records, ack, err := normalizeRecords(resp)
	if err != nil {
		return "", err
	}
	if ack != "" {
		return ack, nil
	}
	return renderRecords(records, cols), nil
}

func queryValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
