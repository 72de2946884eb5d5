// internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pagesync/internal/driver"
)

// -- Element Ref --

// Ref is a trivial driver.ElementRef for mocked drivers.
type Ref string

func (r Ref) String() string { return string(r) }

// -- Driver Mock --

// MockDriver mocks driver.Driver.
type MockDriver struct {
	mock.Mock
}

var _ driver.Driver = (*MockDriver)(nil)

func (m *MockDriver) Resolve(ctx context.Context, loc driver.Locator) (driver.ElementRef, error) {
	args := m.Called(ctx, loc)
	ref, _ := args.Get(0).(driver.ElementRef)
	return ref, args.Error(1)
}

func (m *MockDriver) ResolveAll(ctx context.Context, loc driver.Locator) ([]driver.ElementRef, error) {
	args := m.Called(ctx, loc)
	refs, _ := args.Get(0).([]driver.ElementRef)
	return refs, args.Error(1)
}

func (m *MockDriver) Attribute(ctx context.Context, ref driver.ElementRef, name string) (string, bool, error) {
	args := m.Called(ctx, ref, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockDriver) Text(ctx context.Context, ref driver.ElementRef) (string, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) IsStale(ctx context.Context, ref driver.ElementRef) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) IsDisplayed(ctx context.Context, ref driver.ElementRef) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) IsEnabled(ctx context.Context, ref driver.ElementRef) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) IsChecked(ctx context.Context, ref driver.ElementRef) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) Click(ctx context.Context, ref driver.ElementRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *MockDriver) WriteValue(ctx context.Context, ref driver.ElementRef, text string, clearFirst bool) error {
	return m.Called(ctx, ref, text, clearFirst).Error(0)
}

func (m *MockDriver) Toggle(ctx context.Context, ref driver.ElementRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *MockDriver) Blur(ctx context.Context, ref driver.ElementRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *MockDriver) SelectOption(ctx context.Context, ref driver.ElementRef, by driver.SelectBy, value string) error {
	return m.Called(ctx, ref, by, value).Error(0)
}

func (m *MockDriver) Selection(ctx context.Context, ref driver.ElementRef) (driver.Selected, error) {
	args := m.Called(ctx, ref)
	sel, _ := args.Get(0).(driver.Selected)
	return sel, args.Error(1)
}

// ExecuteScript records the script and the argument slice as two parameters.
func (m *MockDriver) ExecuteScript(ctx context.Context, script string, scriptArgs ...any) (bool, error) {
	args := m.Called(ctx, script, scriptArgs)
	return args.Bool(0), args.Error(1)
}

// ExecuteScriptOn records the script arguments as a single slice parameter.
func (m *MockDriver) ExecuteScriptOn(ctx context.Context, ref driver.ElementRef, script string, scriptArgs ...any) (bool, error) {
	args := m.Called(ctx, ref, script, scriptArgs)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
