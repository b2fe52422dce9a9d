package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"shop_support_console/internal/crm/domain"
	errprocess "shop_support_console/pkg/err"
	"shop_support_console/pkg/logger"

	"github.com/go-resty/resty/v2"
)

// CRMBackend customer/vehicle REST surface of the shop backend
type CRMBackend interface {
	ListCustomers(ctx context.Context, search string, page, limit int) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) error
	DeleteCustomer(ctx context.Context, customerID string) error
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

type restCRMBackend struct {
	client *resty.Client
}

// NewCRMBackend create the resty client against the crm base url
func NewCRMBackend(baseURL, token string) CRMBackend {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")
	return &restCRMBackend{client: client}
}

func (r *restCRMBackend) ListCustomers(ctx context.Context, search string, page, limit int) ([]domain.Customer, error) {
	var env apiEnvelope
	req := r.client.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if search != "" {
		req.SetQueryParam("search", search)
	}
	if page > 0 {
		req.SetQueryParam("page", fmt.Sprintf("%d", page))
	}
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}

	resp, err := req.Get("/customers")
	if err != nil {
		return nil, err
	}
	if resp.IsError() || !env.Success {
		return nil, errprocess.Set(fmt.Sprintf("crm backend GET /customers: %s", resp.Status()))
	}

	return decodeCustomers(env.Data), nil
}

// decodeCustomers item by item, one malformed record must not blank the list
func decodeCustomers(data json.RawMessage) []domain.Customer {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Log.Errorf("customer list decode error:", err)
		return nil
	}
	customers := make([]domain.Customer, 0, len(raw))
	for _, item := range raw {
		var cust domain.Customer
		if err := json.Unmarshal(item, &cust); err != nil || cust.ID == "" {
			logger.Log.Warn("skipping malformed customer record")
			continue
		}
		customers = append(customers, cust)
	}
	return customers
}

func (r *restCRMBackend) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var env apiEnvelope
	req := r.client.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = resp.Status()
		}
		return errprocess.Set(fmt.Sprintf("crm backend %s %s: %s", method, path, msg))
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (r *restCRMBackend) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	var cust domain.Customer
	if err := r.do(ctx, resty.MethodGet, "/customers/"+customerID, nil, &cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

func (r *restCRMBackend) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	var created domain.Customer
	if err := r.do(ctx, resty.MethodPost, "/customers", customer, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *restCRMBackend) UpdateCustomer(ctx context.Context, customer domain.Customer) error {
	return r.do(ctx, resty.MethodPut, "/customers/"+customer.ID, customer, nil)
}

func (r *restCRMBackend) DeleteCustomer(ctx context.Context, customerID string) error {
	return r.do(ctx, resty.MethodDelete, "/customers/"+customerID, nil, nil)
}
