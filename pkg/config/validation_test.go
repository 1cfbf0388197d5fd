package config

import "testing"

func TestValidateRequiresName(t *testing.T) {
	cfg := &Config{Deployment: DeploymentConfig{Image: "nginx:alpine", Replicas: 1, ContainerPort: 8080}}
	errs := Validate(cfg)
	if !containsField(errs, "deployment.name") {
		t.Errorf("expected name error, got %v", errs)
	}
}

func TestValidateExactlyOneOfImageOrBuild(t *testing.T) {
	cases := []struct {
		name   string
		cfg    DeploymentConfig
		wantOK bool
	}{
		{"image only", DeploymentConfig{Name: "web", Image: "nginx:alpine", Replicas: 1, ContainerPort: 8080}, true},
		{"dockerfile and context", DeploymentConfig{Name: "web", Dockerfile: "Dockerfile", Context: ".", Replicas: 1, ContainerPort: 8080}, true},
		{"neither", DeploymentConfig{Name: "web", Replicas: 1, ContainerPort: 8080}, false},
		{"both", DeploymentConfig{Name: "web", Image: "nginx:alpine", Dockerfile: "Dockerfile", Context: ".", Replicas: 1, ContainerPort: 8080}, false},
		{"dockerfile without context", DeploymentConfig{Name: "web", Dockerfile: "Dockerfile", Replicas: 1, ContainerPort: 8080}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			errs := Validate(&Config{Deployment: c.cfg})
			ok := len(errs) == 0
			if ok != c.wantOK {
				t.Errorf("expected ok=%v, got ok=%v errs=%v", c.wantOK, ok, errs)
			}
		})
	}
}

func TestValidateReplicasAndPortBounds(t *testing.T) {
	cfg := &Config{Deployment: DeploymentConfig{Name: "web", Image: "nginx:alpine", Replicas: 0, ContainerPort: 70000}}
	errs := Validate(cfg)
	if !containsField(errs, "deployment.replicas") {
		t.Errorf("expected replicas error, got %v", errs)
	}
	if !containsField(errs, "deployment.containerPort") {
		t.Errorf("expected containerPort error, got %v", errs)
	}
}

func containsField(errs ErrorList, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}
